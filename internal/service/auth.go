package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/pageza/nutricalc/backend/internal/models"
)

const minPasswordLength = 8

var (
	ErrOperatorExists     = errors.New("operator already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLength)
)

// TokenSigner issues bearer tokens for an operator
type TokenSigner interface {
	Sign(subject, name string) (string, time.Time, error)
}

// AuthService manages the operators allowed to use the API
type AuthService struct {
	db     *gorm.DB
	tokens TokenSigner
}

func NewAuthService(db *gorm.DB, tokens TokenSigner) *AuthService {
	return &AuthService{
		db:     db,
		tokens: tokens,
	}
}

// Register creates an operator with a bcrypt-hashed password
func (s *AuthService) Register(ctx context.Context, username, name, password string) (*models.Operator, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	if name == "" {
		name = username
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Operator{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check operator: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: %s", ErrOperatorExists, username)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	op := &models.Operator{
		Username:     username,
		Name:         name,
		PasswordHash: string(hashedPassword),
	}
	if err := s.db.WithContext(ctx).Create(op).Error; err != nil {
		return nil, fmt.Errorf("failed to create operator: %w", err)
	}
	return op, nil
}

// Login checks the credentials and returns a signed token with its expiry
func (s *AuthService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	var op models.Operator
	if err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&op).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", time.Time{}, ErrInvalidCredentials
		}
		return "", time.Time{}, fmt.Errorf("failed to load operator: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	return s.tokens.Sign(op.ID.String(), op.Name)
}
