package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgAuth "github.com/emekandu/kasuwa-backend/pkg/auth"
	"github.com/emekandu/kasuwa-backend/pkg/config"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

type stubSessionChecker struct {
	active bool
	err    error
}

func (s stubSessionChecker) HasSession(ctx context.Context, accessID string) (bool, error) {
	return s.active, s.err
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "kasuwa-test",
		ExpirationMinutes: 15,
	}
}

func mintToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, role enums.MemberRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    uuid.NewString(),
	})
	require.NoError(t, err)
	return token
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	handler := Auth(testJWTConfig(), stubSessionChecker{active: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthSeedsActorContext(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()

	var gotUser, gotRole string
	handler := Auth(cfg, stubSessionChecker{active: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, userID, enums.MemberRoleAgent))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, userID.String(), gotUser)
	require.Equal(t, "agent", gotRole)

	actor, err := ActorFromContext(WithRole(WithUserID(context.Background(), gotUser), gotRole))
	require.NoError(t, err)
	require.Equal(t, userID, actor.UserID)
	require.True(t, actor.IsAgent())
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	cfg := testJWTConfig()
	handler := Auth(cfg, stubSessionChecker{active: false}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, uuid.New(), enums.MemberRoleUser))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleBlocksOtherRoles(t *testing.T) {
	handler := RequireRole("admin", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/ping", nil)
	req = req.WithContext(WithRole(req.Context(), "user"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = req.WithContext(WithRole(req.Context(), "admin"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
