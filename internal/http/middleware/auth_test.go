package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/minischools/academy-backend/internal/platform/ctxutil"
	"github.com/minischools/academy-backend/internal/platform/logger"
	"github.com/minischools/academy-backend/internal/services"
)

func newAuthRouter(t *testing.T) (*gin.Engine, services.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth, err := services.NewAuthService(logger.Nop(), services.AuthConfig{SecretKey: "test-secret"})
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	r := gin.New()
	r.Use(NewAuthMiddleware(logger.Nop(), auth).RequireAuth())
	r.GET("/api/me", func(c *gin.Context) {
		c.String(http.StatusOK, ctxutil.CreatorID(c.Request.Context()).String())
	})
	return r, auth
}

func TestRequireAuthAcceptsBearerAndQueryToken(t *testing.T) {
	r, auth := newAuthRouter(t)
	creator := uuid.New()
	tok, _ := auth.IssueToken(creator)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != creator.String() {
		t.Fatalf("bearer: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me?token="+tok, nil))
	if rec.Code != http.StatusOK || rec.Body.String() != creator.String() {
		t.Fatalf("query: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRequireAuthRejects(t *testing.T) {
	r, _ := newAuthRouter(t)

	for _, header := range []string{"", "Bearer nope", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%q: status = %d", header, rec.Code)
		}
	}
}
