package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"stageflow_backend/platform/apperr"
	"stageflow_backend/platform/httpkit"
)

type fakeVerifier struct {
	businessID uuid.UUID
	key        string
}

func (f *fakeVerifier) VerifyKey(_ context.Context, key string) (uuid.UUID, error) {
	if key != f.key {
		return uuid.Nil, apperr.Unauthorized("invalid api key")
	}
	return f.businessID, nil
}

func newTestRouter(keys KeyVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(APIKeyAuth(keys, nil))
	engine.GET("/ping", func(c *gin.Context) {
		id, ok := httpkit.GetBusinessID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"businessId": id.String()})
	})
	return engine
}

func TestAPIKeyAuth(t *testing.T) {
	businessID := uuid.New()
	verifier := &fakeVerifier{businessID: businessID, key: "sf_valid.secret"}
	engine := newTestRouter(verifier)

	cases := []struct {
		name       string
		header     string
		value      string
		wantStatus int
	}{
		{"x-api-key header", "X-API-Key", "sf_valid.secret", http.StatusOK},
		{"bearer fallback", "Authorization", "Bearer sf_valid.secret", http.StatusOK},
		{"wrong key", "X-API-Key", "sf_other.secret", http.StatusUnauthorized},
		{"missing key", "", "", http.StatusUnauthorized},
		{"bearer without prefix", "Authorization", "sf_valid.secret", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.wantStatus, rec.Body.String())
			}
		})
	}
}
