package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		HospitalID: uuid.NewString(),
		Roles:      []string{RoleHospital},
	}
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, header string, handler echo.HandlerFunc) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return mw(handler)(c)
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected HTTP %d error, got nil", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "", okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), tt.header, okHandler)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	claims := validClaims()
	claims.ClinicianID = uuid.NewString()
	claims.Roles = []string{RoleClinician, RoleLab}
	tokenStr := createTestToken(t, claims, testSigningKey)

	var got Actor
	handler := func(c echo.Context) error {
		a, ok := ActorFromContext(c.Request().Context())
		if !ok {
			t.Fatal("expected actor on context")
		}
		got = a
		return c.String(http.StatusOK, "ok")
	}

	if err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tokenStr, handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != "user-123" {
		t.Errorf("expected user-123, got %s", got.UserID)
	}
	if got.HospitalID.String() != claims.HospitalID {
		t.Errorf("expected hospital %s, got %s", claims.HospitalID, got.HospitalID)
	}
	if got.ClinicianID.String() != claims.ClinicianID {
		t.Errorf("expected clinician %s, got %s", claims.ClinicianID, got.ClinicianID)
	}
	if len(got.Roles) != 2 || got.Roles[0] != RoleClinician {
		t.Errorf("unexpected roles %v", got.Roles)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-1 * time.Hour))
	claims.IssuedAt = jwt.NewNumericDate(time.Now().Add(-2 * time.Hour))
	tokenStr := createTestToken(t, claims, testSigningKey)

	err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tokenStr, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	tokenStr := createTestToken(t, validClaims(), []byte("another-key"))
	err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tokenStr, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_IssuerMismatch(t *testing.T) {
	claims := validClaims()
	claims.Issuer = "https://other-issuer"
	tokenStr := createTestToken(t, claims, testSigningKey)

	cfg := JWTConfig{SigningKey: testSigningKey, Issuer: "https://idp.clinicore.test"}
	err := runMiddleware(t, JWTMiddleware(cfg), "Bearer "+tokenStr, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_MalformedHospitalClaim(t *testing.T) {
	claims := validClaims()
	claims.HospitalID = "not-a-uuid"
	tokenStr := createTestToken(t, claims, testSigningKey)

	err := runMiddleware(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "Bearer "+tokenStr, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_RevokedToken(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()

	claims := validClaims()
	claims.ID = "jti-revoked"
	_ = store.Revoke(context.Background(), claims.ID, time.Now().Add(time.Hour))
	tokenStr := createTestToken(t, claims, testSigningKey)

	cfg := JWTConfig{SigningKey: testSigningKey, Revocations: store}
	err := runMiddleware(t, JWTMiddleware(cfg), "Bearer "+tokenStr, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/health")

	mw := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Skipper: AuthSkipper})
	if err := mw(okHandler)(c); err != nil {
		t.Fatalf("expected skipped path to pass, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestDevAuthMiddleware_NoToken(t *testing.T) {
	dev := DefaultDevActor()
	handler := func(c echo.Context) error {
		ctx := c.Request().Context()
		if uid := UserIDFromContext(ctx); uid != "dev-user" {
			t.Errorf("expected user_id=dev-user, got %s", uid)
		}
		roles := RolesFromContext(ctx)
		if len(roles) != 1 || roles[0] != RoleAdmin {
			t.Errorf("expected roles=[admin], got %v", roles)
		}
		a, _ := ActorFromContext(ctx)
		if a.HospitalID != dev.HospitalID {
			t.Errorf("expected dev hospital %s, got %s", dev.HospitalID, a.HospitalID)
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := runMiddleware(t, DevAuthMiddleware(dev), "", handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestActor_HasRole(t *testing.T) {
	a := Actor{Roles: []string{RoleClinician}}
	if !a.HasRole(RoleClinician) {
		t.Error("expected clinician role")
	}
	if a.HasRole(RoleHospital) {
		t.Error("did not expect hospital role")
	}
	admin := Actor{Roles: []string{RoleAdmin}}
	if !admin.HasRole(RoleLab) {
		t.Error("expected admin to hold every role")
	}
}
