package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	colChalets       = "chalets"
	colRateRules     = "rate_rules"
	colAddOns        = "add_ons"
	colSettings      = "settings"
	colBookings      = "bookings"
	colBookingAddOns = "booking_addons"
	colBookingNights = "booking_nights"
	colOutbox        = "app_outbox"
	colIdempotency   = "app_idempotency"
)

type Client struct {
	DB *mongo.Database
}

// New connects with majority read and write concerns; booking transactions rely on them.
func New(uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opts := options.Client().
		ApplyURI(uri).
		SetRetryWrites(true).
		SetReadConcern(readconcern.Majority()).
		SetWriteConcern(writeconcern.Majority())
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the store queries by. Night ownership is enforced by
// the booking_nights primary key, which needs no extra index.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	models := map[string][]mongo.IndexModel{
		colRateRules: {
			{Keys: bson.D{{Key: "unit_id", Value: 1}, {Key: "active", Value: 1}, {Key: "start_date", Value: 1}}},
		},
		colBookings: {
			{Keys: bson.D{{Key: "unit_id", Value: 1}, {Key: "check_in", Value: 1}, {Key: "check_out", Value: 1}}},
		},
		colBookingAddOns: {
			{Keys: bson.D{{Key: "booking_id", Value: 1}}},
		},
		colBookingNights: {
			{Keys: bson.D{{Key: "booking_id", Value: 1}}},
		},
		colOutbox: {
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
		},
	}
	for name, idx := range models {
		if _, err := c.DB.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}
