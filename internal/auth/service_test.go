package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/emekandu/kasuwa-backend/pkg/auth"
	"github.com/emekandu/kasuwa-backend/pkg/config"
	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/emekandu/kasuwa-backend/pkg/errors"
	"github.com/emekandu/kasuwa-backend/pkg/security"
)

type stubUserRepo struct {
	byEmail map[string]*models.User
	byID    map[uuid.UUID]*models.User
	created []*models.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		byEmail: map[string]*models.User{},
		byID:    map[uuid.UUID]*models.User{},
	}
}

func (r *stubUserRepo) add(user *models.User) {
	r.byEmail[user.Email] = user
	r.byID[user.ID] = user
}

func (r *stubUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if _, exists := r.byEmail[user.Email]; exists {
		return nil, gorm.ErrDuplicatedKey
	}
	user.ID = uuid.New()
	r.add(user)
	r.created = append(r.created, user)
	return user, nil
}

func (r *stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := r.byID[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := r.byEmail[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

type stubSessions struct {
	generated map[string]string
	revoked   []string
}

func newStubSessions() *stubSessions {
	return &stubSessions{generated: map[string]string{}}
}

func (s *stubSessions) Generate(ctx context.Context, accessID string) (string, error) {
	token := "refresh-" + accessID
	s.generated[accessID] = token
	return token, nil
}

func (s *stubSessions) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := s.generated[oldAccessID]
	if !ok || stored != provided {
		return "", "", pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	}
	delete(s.generated, oldAccessID)
	newID := "rotated-" + oldAccessID
	token := "refresh-" + newID
	s.generated[newID] = token
	return newID, token, nil
}

func (s *stubSessions) Revoke(ctx context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	delete(s.generated, accessID)
	return nil
}

func testConfigs() (config.JWTConfig, config.PasswordConfig) {
	jwt := config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "kasuwa",
		ExpirationMinutes: 15,
	}
	pw := config.PasswordConfig{
		ArgonMemoryKB:    1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
	return jwt, pw
}

func newTestService(t *testing.T, repo *stubUserRepo, sessions *stubSessions) Service {
	t.Helper()
	jwtCfg, pwCfg := testConfigs()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig:      jwtCfg,
		PasswordConfig: pwCfg,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedUser(t *testing.T, repo *stubUserRepo, email, password string, role enums.MemberRole) *models.User {
	t.Helper()
	_, pwCfg := testConfigs()
	hash, err := security.HashPassword(password, pwCfg)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Ade",
		LastName:     "Obi",
		Role:         role,
		IsActive:     true,
	}
	repo.add(user)
	return user
}

func TestRegisterIssuesTokens(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessions()
	svc := newTestService(t, repo, sessions)

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "Buyer@Example.com",
		Password:  "long-enough-pw",
		FirstName: "Ngozi",
		LastName:  "Eze",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected tokens on register")
	}
	if resp.User.Email != "buyer@example.com" {
		t.Fatalf("email not normalized: %q", resp.User.Email)
	}
	if resp.User.Role != enums.MemberRoleUser {
		t.Fatalf("self registration must create user role, got %s", resp.User.Role)
	}

	jwtCfg, _ := testConfigs()
	claims, err := pkgAuth.ParseAccessToken(jwtCfg, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse minted token: %v", err)
	}
	if claims.Role != enums.MemberRoleUser {
		t.Fatalf("unexpected token role %s", claims.Role)
	}
}

func TestRegisterStaffRequiresAdmin(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(t, repo, newStubSessions())

	req := StaffRegisterRequest{
		Email:     "agent@kasuwa.app",
		Password:  "long-enough-pw",
		FirstName: "Musa",
		LastName:  "Bello",
		Role:      enums.MemberRoleAgent,
	}

	if _, err := svc.RegisterStaff(context.Background(), enums.MemberRoleAgent, req); pkgerrors.As(err).Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for non-admin actor, got %v", err)
	}

	summary, err := svc.RegisterStaff(context.Background(), enums.MemberRoleAdmin, req)
	if err != nil {
		t.Fatalf("register staff: %v", err)
	}
	if summary.Role != enums.MemberRoleAgent {
		t.Fatalf("unexpected role %s", summary.Role)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(t, repo, newStubSessions())
	seedUser(t, repo, "seller@example.com", "correct-password", enums.MemberRoleUser)

	if _, err := svc.Login(context.Background(), LoginRequest{Email: "seller@example.com", Password: "wrong"}); err == nil {
		t.Fatal("expected wrong password to fail")
	} else if !strings.Contains(err.Error(), invalidCredentialsMessage) {
		t.Fatalf("expected opaque credential error, got %v", err)
	}

	if _, err := svc.Login(context.Background(), LoginRequest{Email: "ghost@example.com", Password: "whatever"}); err == nil {
		t.Fatal("expected unknown email to fail")
	}
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(t, repo, newStubSessions())
	user := seedUser(t, repo, "blocked@example.com", "correct-password", enums.MemberRoleUser)
	user.IsActive = false

	if _, err := svc.Login(context.Background(), LoginRequest{Email: "blocked@example.com", Password: "correct-password"}); err == nil {
		t.Fatal("expected inactive user to fail login")
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	repo := newStubUserRepo()
	sessions := newStubSessions()
	svc := newTestService(t, repo, sessions)
	seedUser(t, repo, "buyer@example.com", "correct-password", enums.MemberRoleUser)

	login, err := svc.Login(context.Background(), LoginRequest{Email: "buyer@example.com", Password: "correct-password"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Fatal("refresh token must rotate")
	}

	// old refresh token is burned
	if _, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	}); err == nil {
		t.Fatal("expected replayed refresh token to fail")
	}
}
