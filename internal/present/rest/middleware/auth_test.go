package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/escrow-ledger"
	"github.com/totegamma/escrow-ledger/internal/domain"
	"github.com/totegamma/escrow-ledger/internal/service"
	"github.com/totegamma/escrow-ledger/jwt"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"", "", false},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Bearer a b", "", false},
	}

	for _, tt := range tests {
		token, ok := bearerToken(tt.header)
		if token != tt.token || ok != tt.ok {
			t.Errorf("%q: expected (%q, %v) got (%q, %v)", tt.header, tt.token, tt.ok, token, ok)
		}
	}
}

func TestIdentifyIdentity(t *testing.T) {
	config := domain.Config{FQDN: "ledger.example.com"}
	auth := NewAuthMiddleware(service.NewAuthService(config))

	priv, addr, err := escrow.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	token, err := jwt.Create(jwt.Claims{
		Subject:        service.TokenSubject,
		Audience:       config.FQDN,
		ExpirationTime: strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10),
	}, priv)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	e := echo.New()
	e.Use(auth.IdentifyIdentity)
	e.GET("/whoami", func(c echo.Context) error {
		requester, _ := c.Request().Context().Value(domain.RequesterIdCtxKey).(string)
		return c.String(http.StatusOK, requester)
	})

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"valid token", "Bearer " + token, addr},
		{"anonymous", "", ""},
		{"wrong scheme", "Token " + token, ""},
		{"garbage token", "Bearer not-a-token", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200 got %d", rec.Code)
			}
			if rec.Body.String() != tt.want {
				t.Errorf("expected requester %q got %q", tt.want, rec.Body.String())
			}
		})
	}
}
