package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"tripwise_backend/internal/auth"
	"tripwise_backend/internal/logger"
	"tripwise_backend/internal/models"
	"tripwise_backend/internal/repositories"
	"tripwise_backend/pkg/apperrors"
)

// AuthResult bundles the issued token with the user it belongs to.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type AuthService interface {
	// Register creates the user and provisions a free-tier subscription.
	Register(ctx context.Context, db *gorm.DB, email, password, name string) (*AuthResult, error)
	Login(ctx context.Context, db *gorm.DB, email, password string) (*AuthResult, error)
}

type authService struct {
	subs *repositories.SubscriptionRepository
}

func NewAuthService(subs *repositories.SubscriptionRepository) AuthService {
	return &authService{subs: subs}
}

func (s *authService) Register(ctx context.Context, db *gorm.DB, email, password, name string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var existing models.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, apperrors.ErrAlreadyExists(nil)
	}
	if err != gorm.ErrRecordNotFound {
		return nil, apperrors.InternalError(err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         models.UserRoleUser,
	}
	if err := db.Create(user).Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	// Every account starts on the free plan; the admission path expects the
	// record to exist.
	if _, err := s.subs.FindOrCreate(db, user.ID, time.Now()); err != nil {
		return nil, apperrors.InternalError(err)
	}

	token, err := auth.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "user registered", "user_id", user.ID)
	return &AuthResult{Token: token, User: user}, nil
}

func (s *authService) Login(ctx context.Context, db *gorm.DB, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.InternalError(err)
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	return &AuthResult{Token: token, User: &user}, nil
}
