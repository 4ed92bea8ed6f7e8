package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Egham-7/repurpose-api/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "auth.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	svc := NewService(db, 0, bcrypt.MinCost)
	if err := svc.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return svc, db
}

func TestSignupCreatesFreeUserAndSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, session, err := svc.Signup(ctx, SignupParams{Email: " Ada@Example.com ", Password: "hunter2"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if user.Email != "ada@example.com" || user.Name != "ada" || user.Plan != models.PlanFree || user.CreditsUsed != 0 {
		t.Fatalf("user = %+v", user)
	}
	if user.PasswordHash == "hunter2" {
		t.Fatalf("password stored in clear text")
	}
	if len(session.ID) != 43 {
		t.Fatalf("token length = %d, want 43", len(session.ID))
	}
	if ttl := time.Until(session.ExpiresAt); ttl < DefaultSessionTTL-time.Minute || ttl > DefaultSessionTTL {
		t.Fatalf("session ttl = %s", ttl)
	}

	resolved, err := svc.ResolveSession(ctx, session.ID)
	if err != nil || resolved == nil || resolved.ID != user.ID {
		t.Fatalf("ResolveSession = %+v, %v", resolved, err)
	}
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, SignupParams{Email: "a@b.c"}); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("missing password err = %v", err)
	}
	if _, _, err := svc.Signup(ctx, SignupParams{Email: "a@b.c", Password: "pw", Name: "Ann"}); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if _, _, err := svc.Signup(ctx, SignupParams{Email: "A@B.C", Password: "pw"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate err = %v, want ErrEmailTaken", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, SignupParams{Email: "a@b.c", Password: "right"}); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"valid", "a@b.c", "right", nil},
		{"case insensitive email", "A@B.C", "right", nil},
		{"wrong password", "a@b.c", "wrong", ErrInvalidCredentials},
		{"unknown email", "x@b.c", "right", ErrInvalidCredentials},
		{"empty", "", "", ErrMissingCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, session, err := svc.Login(ctx, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && (user == nil || session == nil) {
				t.Fatalf("expected user and session")
			}
		})
	}
}

func TestExpiredSessionIsAnonymous(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, session, err := svc.Signup(ctx, SignupParams{Email: "a@b.c", Password: "pw"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	db.Model(&models.Session{}).Where("id = ?", session.ID).Update("expires_at", time.Now().Add(-time.Second))

	user, err := svc.ResolveSession(ctx, session.ID)
	if err != nil || user != nil {
		t.Fatalf("expired session resolved to %+v, %v", user, err)
	}

	removed, err := svc.PurgeExpiredSessions(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("PurgeExpiredSessions = %d, %v; want 1", removed, err)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, session, _ := svc.Signup(ctx, SignupParams{Email: "a@b.c", Password: "pw"})
	if err := svc.Logout(ctx, session.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if user, _ := svc.ResolveSession(ctx, session.ID); user != nil {
		t.Fatalf("session still resolves after logout")
	}
	if user, err := svc.ResolveSession(ctx, "unknown"); user != nil || err != nil {
		t.Fatalf("unknown token = %+v, %v", user, err)
	}
}
