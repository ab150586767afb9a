package httpjson

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/asigbo/portal/internal/app/system/apierr"
	"go.uber.org/zap"
)

func TestError_WireFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, zap.NewNop(), apierr.NotFound("activity not found"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body struct {
		Err    string `json:"err"`
		Status int    `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if body.Err != "activity not found" || body.Status != 404 {
		t.Errorf("body = %+v", body)
	}
}

func TestDecode_EmptyBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(""))
	var dst struct{ Name string }

	err := Decode(req, &dst)
	if apierr.StatusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 domain error, got %v", err)
	}
	if apierr.MessageOf(err) != "request body is required" {
		t.Errorf("message = %q", apierr.MessageOf(err))
	}
}

func TestDecode_Malformed(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader("{nope"))
	var dst struct{ Name string }

	if err := Decode(req, &dst); apierr.StatusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 domain error, got %v", err)
	}
}
