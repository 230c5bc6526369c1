package s3

import "testing"

func TestParseEndpointStripsScheme(t *testing.T) {
	cases := map[string]string{
		"http://minio:9000":  "minio:9000",
		"https://s3.local":   "s3.local",
		"localhost:9000":     "localhost:9000",
		"storage.example.io": "storage.example.io",
	}
	for in, want := range cases {
		if got := parseEndpoint(in); got != want {
			t.Fatalf("parseEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewCatalogSourceValidatesInput(t *testing.T) {
	if _, err := NewCatalogSource("", false, "k", "s", "bucket", nil); err == nil {
		t.Fatal("expected endpoint error")
	}
	if _, err := NewCatalogSource("localhost:9000", false, "k", "s", " ", nil); err == nil {
		t.Fatal("expected bucket error")
	}
	src, err := NewCatalogSource("http://localhost:9000", false, "k", "s", "catalog", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.bucket != "catalog" {
		t.Fatalf("unexpected bucket %q", src.bucket)
	}
}
