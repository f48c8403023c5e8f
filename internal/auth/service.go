// Package auth is the email/password identity provider. Service owns the
// credential and session tables and issues signed access tokens; Client
// is the per-connection handle that tracks who is signed in.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"todola/backend/internal/models"
)

const minPasswordLength = 6

type Config struct {
	Secret     string
	Issuer     string
	TokenTTL   time.Duration
	BCryptCost int
}

type Claims struct {
	UID       string `json:"uid"`
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() *models.Identity {
	return &models.Identity{UID: c.UID, Email: c.Email}
}

// Session is the result of a successful sign-in.
type Session struct {
	Identity  models.Identity `json:"user"`
	ID        string          `json:"-"`
	Token     string          `json:"access_token"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type Service struct {
	db       *gorm.DB
	cfg      Config
	validate *validator.Validate
	log      *slog.Logger
	now      func() time.Time
}

func NewService(db *gorm.DB, cfg Config, log *slog.Logger) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "todola"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.BCryptCost == 0 {
		cfg.BCryptCost = bcrypt.DefaultCost
	}
	if err := db.AutoMigrate(&Credential{}, &AuthSession{}); err != nil {
		return nil, fmt.Errorf("failed to migrate auth tables: %w", err)
	}

	return &Service{
		db:       db,
		cfg:      cfg,
		validate: validator.New(),
		log:      log.With("component", "auth"),
		now:      time.Now,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	db := s.db.WithContext(ctx)

	var existing Credential
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, ErrEmailInUse
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up credential: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BCryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	cred := Credential{
		UID:          uuid.Must(uuid.NewV4()).String(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := db.Create(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("failed to create credential: %w", err)
	}

	s.log.Info("account created", "uid", cred.UID)
	return s.issue(ctx, cred)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)

	var cred Credential
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidLogin
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up credential: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidLogin
	}

	return s.issue(ctx, cred)
}

func (s *Service) issue(ctx context.Context, cred Credential) (*Session, error) {
	now := s.now()
	record := AuthSession{
		ID:        uuid.Must(uuid.NewV4()).String(),
		UID:       cred.UID,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	claims := Claims{
		UID:       cred.UID,
		Email:     cred.Email,
		SessionID: record.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   cred.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Session{
		Identity:  models.Identity{UID: cred.UID, Email: cred.Email},
		ID:        record.ID,
		Token:     token,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// VerifyToken checks signature, issuer and expiry, then that the session
// the token belongs to has not been signed out.
func (s *Service) VerifyToken(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	var record AuthSession
	err = s.db.WithContext(ctx).Where("id = ?", claims.SessionID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if record.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}

	return claims, nil
}

func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	now := s.now()
	result := s.db.WithContext(ctx).Model(&AuthSession{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", &now)
	if result.Error != nil {
		return fmt.Errorf("failed to revoke session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNoCurrentUser
	}
	return nil
}

// PurgeExpired removes sessions past their expiry and returns how many
// were deleted.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at < ?", s.now()).Delete(&AuthSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
