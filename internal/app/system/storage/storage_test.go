// internal/app/system/storage/storage_test.go
package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func TestLocalPutOpenDelete(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	key := "images/2026/08/abc-photo.png"
	if err := s.Put(ctx, key, bytes.NewReader([]byte("png-bytes"))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rc, err := s.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "png-bytes" {
		t.Fatalf("read back %q", got)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Open(ctx, key); err == nil {
		t.Fatal("Open succeeded after Delete")
	}
	// Deleting a missing key is not an error.
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	for _, key := range []string{"../outside", "/etc/passwd", "a/../../b", "."} {
		if err := s.Put(context.Background(), key, strings.NewReader("x")); err == nil {
			t.Errorf("Put(%q) accepted an escaping key", key)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"photo.png":          "photo.png",
		"../../etc/passwd":   "passwd",
		"my report (1).pdf":  "my_report__1_.pdf",
		"":                   "file",
		"voucher año 12.jpg": "voucher_a__o_12.jpg",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUploadKeyShape(t *testing.T) {
	key := UploadKey("vouchers", "receipt.pdf")
	if !strings.HasPrefix(key, "vouchers/") {
		t.Fatalf("key %q missing prefix", key)
	}
	if !strings.HasSuffix(key, "-receipt.pdf") {
		t.Fatalf("key %q missing sanitized filename", key)
	}
	if key == UploadKey("vouchers", "receipt.pdf") {
		t.Fatal("two keys for the same filename collided")
	}
}
