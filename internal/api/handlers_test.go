package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/avoevodin/debtbot/internal/config"
	"github.com/avoevodin/debtbot/internal/ledger"
)

func newTestAPI(t *testing.T) (*API, *ledger.Service) {
	t.Helper()
	svc := ledger.NewService(ledger.NewMemoryStore(), zerolog.Nop())
	cfg := &config.Config{JWTSecret: "test-secret", WebBind: "127.0.0.1:0"}
	return New(cfg, svc, zerolog.Nop()), svc
}

func signToken(t *testing.T, a *API, userID string) string {
	t.Helper()
	claims := &Claims{
		UserID:   userID,
		Username: "tester",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func authedGet(a *API, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestProtectedEndpointsRequireToken(t *testing.T) {
	a, _ := newTestAPI(t)

	w := authedGet(a, "/api/me", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without token, got %v", w.Code)
	}

	w = authedGet(a, "/api/me", "not-a-jwt")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 with garbage token, got %v", w.Code)
	}
}

func TestHandleMe(t *testing.T) {
	a, svc := newTestAPI(t)
	ctx := context.Background()

	if _, err := svc.AddUser(ctx, &ledger.User{Name: "alex", ChatID: "42", Username: "alex"}); err != nil {
		t.Fatalf("failed to add user: %v", err)
	}

	w := authedGet(a, "/api/me", signToken(t, a, "42"))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"name":"alex"`) {
		t.Errorf("Expected body to contain the user name, got %s", w.Body.String())
	}

	// a Discord login the bot has never seen
	w = authedGet(a, "/api/me", signToken(t, a, "999"))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown user, got %v", w.Code)
	}
}

func TestHandleMyBorrowers(t *testing.T) {
	a, svc := newTestAPI(t)
	ctx := context.Background()

	if _, err := svc.AddUser(ctx, &ledger.User{Name: "alex", ChatID: "42"}); err != nil {
		t.Fatalf("failed to add user: %v", err)
	}
	if _, err := svc.AddUser(ctx, &ledger.User{Name: "kim", ChatID: "43"}); err != nil {
		t.Fatalf("failed to add user: %v", err)
	}
	if _, err := svc.AddDebt(ctx, "kim", "alex", decimal.RequireFromString("150"), "dinner", ""); err != nil {
		t.Fatalf("failed to add debt: %v", err)
	}

	w := authedGet(a, "/api/me/borrowers", signToken(t, a, "42"))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"name":"kim"`) || !strings.Contains(body, "150") {
		t.Errorf("Expected kim owing 150, got %s", body)
	}

	w = authedGet(a, "/api/me/debts", signToken(t, a, "43"))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"name":"alex"`) {
		t.Errorf("Expected alex in kim's creditors, got %s", w.Body.String())
	}
}

func TestHandleEventBalances(t *testing.T) {
	a, svc := newTestAPI(t)
	ctx := context.Background()

	for _, u := range []struct{ name, chatID string }{{"alex", "42"}, {"kim", "43"}, {"sam", "44"}} {
		if _, err := svc.AddUser(ctx, &ledger.User{Name: u.name, ChatID: u.chatID}); err != nil {
			t.Fatalf("failed to add user: %v", err)
		}
	}
	if _, err := svc.AddEvent(ctx, "trip", []string{"alex", "kim"}); err != nil {
		t.Fatalf("failed to add event: %v", err)
	}
	if _, err := svc.AddDebt(ctx, "kim", "alex", decimal.RequireFromString("80"), "fuel", "trip"); err != nil {
		t.Fatalf("failed to add debt: %v", err)
	}

	w := authedGet(a, "/api/events/trip/balances", signToken(t, a, "42"))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %v", w.Code)
	}
	if !strings.Contains(w.Body.String(), "80") {
		t.Errorf("Expected the trip balance in the body, got %s", w.Body.String())
	}

	// sam is not on the trip
	w = authedGet(a, "/api/events/trip/balances", signToken(t, a, "44"))
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for a non-member, got %v", w.Code)
	}

	w = authedGet(a, "/api/events/nope/balances", signToken(t, a, "42"))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown event, got %v", w.Code)
	}
}
