package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/minischools/academy-backend/internal/platform/apierr"
)

func run(t *testing.T, h gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	h(c)
	return rec
}

func TestRespondAPIErrorKeepsStatusAndCode(t *testing.T) {
	rec := run(t, func(c *gin.Context) {
		RespondAPIError(c, fmt.Errorf("wrapped: %w", apierr.NotFound("content_not_found", errors.New("content not found"))))
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error.Code != "content_not_found" || env.Error.Message != "content not found" {
		t.Fatalf("unexpected body: %+v", env)
	}
}

func TestRespondAPIErrorHidesInternalMessages(t *testing.T) {
	rec := run(t, func(c *gin.Context) {
		RespondAPIError(c, errors.New("pq: connection refused at 10.0.0.3"))
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var env ErrorEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	if env.Error.Message != "internal server error" {
		t.Fatalf("internal detail leaked: %q", env.Error.Message)
	}
}

func TestEnvelopeShapes(t *testing.T) {
	rec := run(t, func(c *gin.Context) { Success(c, http.StatusAccepted, gin.H{"id": "x"}) })
	var ok map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &ok)
	if rec.Code != http.StatusAccepted || ok["success"] != true || ok["data"].(map[string]any)["id"] != "x" {
		t.Fatalf("unexpected success envelope: %d %v", rec.Code, ok)
	}

	rec = run(t, func(c *gin.Context) { FailAPIError(c, apierr.BadRequest("missing_title", errors.New("title is required"))) })
	var bad Envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &bad)
	if rec.Code != http.StatusBadRequest || bad.Success || bad.Message != "title is required" || bad.Code != "missing_title" {
		t.Fatalf("unexpected failure envelope: %d %+v", rec.Code, bad)
	}
}
