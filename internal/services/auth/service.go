package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	DefaultSessionTTL = 30 * 24 * time.Hour

	sessionTokenBytes = 32
)

var (
	ErrMissingCredentials = errors.New("email and password required")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type SignupParams struct {
	Email    string
	Password string
	Name     string
}

// Service is the credential store: users, password hashes and session tokens.
type Service struct {
	db         *gorm.DB
	sessionTTL time.Duration
	bcryptCost int
}

func NewService(db *gorm.DB, sessionTTL time.Duration, bcryptCost int) *Service {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{db: db, sessionTTL: sessionTTL, bcryptCost: bcryptCost}
}

func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&models.User{}, &models.Session{})
}

func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Signup creates a free-plan user and its first session.
func (s *Service) Signup(ctx context.Context, params SignupParams) (*models.User, *models.Session, error) {
	email := normalizeEmail(params.Email)
	if email == "" || params.Password == "" {
		return nil, nil, ErrMissingCredentials
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Plan:         models.PlanFree,
	}

	var session *models.Session
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if existing > 0 {
			return ErrEmailTaken
		}

		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		session, err = s.createSession(tx, user.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return user, session, nil
}

// Login verifies the password and issues a new session.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, *models.Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, nil, ErrMissingCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.createSession(s.db.WithContext(ctx), user.ID)
	if err != nil {
		return nil, nil, err
	}

	return &user, session, nil
}

// Logout deletes the session. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("id = ?", token).Delete(&models.Session{}).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ResolveSession returns the user owning an unexpired session, or nil for anonymous.
func (s *Service) ResolveSession(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Joins("JOIN sessions ON sessions.user_id = users.id").
		Where("sessions.id = ? AND sessions.expires_at > ?", token, time.Now()).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	return &user, nil
}

// PurgeExpiredSessions deletes sessions past their expiry and returns how many were removed.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", time.Now()).Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Service) createSession(db *gorm.DB, userID string) (*models.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:        token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}
	if err := db.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

func generateToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
