package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aurachat/aurachat/pkg/auth"
	"github.com/aurachat/aurachat/pkg/config"
	"github.com/gin-gonic/gin"
)

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine.POST("/api/auth/token", NewAuthHandler(&config.AppConfig{}, logger).IssueToken)
	return engine
}

func postToken(t *testing.T, engine *gin.Engine, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestIssueToken_MintsVerifiableCredential(t *testing.T) {
	t.Setenv("AURACHAT_JWT_SECRET", "mint-secret")
	t.Setenv("AURACHAT_PROVISION_KEY", "")

	engine := newAuthRouter(t)
	w := postToken(t, engine, `{"id":"ext-1","email":"ann@example.com","name":"Ann"}`, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	profile, err := auth.Verify(resp.Token, "mint-secret")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if profile.Subject != "ext-1" || profile.Email != "ann@example.com" {
		t.Fatalf("profile = %+v", profile)
	}
}

func TestIssueToken_RequiresProfileFields(t *testing.T) {
	t.Setenv("AURACHAT_JWT_SECRET", "mint-secret")
	t.Setenv("AURACHAT_PROVISION_KEY", "")

	engine := newAuthRouter(t)
	w := postToken(t, engine, `{"name":"nobody"}`, nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestIssueToken_ProvisionKeyGuard(t *testing.T) {
	t.Setenv("AURACHAT_JWT_SECRET", "mint-secret")
	t.Setenv("AURACHAT_PROVISION_KEY", "letmein")

	engine := newAuthRouter(t)
	body := `{"id":"ext-1","email":"ann@example.com"}`

	if w := postToken(t, engine, body, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("status without key = %d, want 401", w.Code)
	}
	if w := postToken(t, engine, body, map[string]string{"X-Provision-Key": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("status with wrong key = %d, want 401", w.Code)
	}
	if w := postToken(t, engine, body, map[string]string{"X-Provision-Key": "letmein"}); w.Code != http.StatusOK {
		t.Fatalf("status with key = %d, want 200", w.Code)
	}
}
