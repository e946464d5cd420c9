package services

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
	"github.com/pulsecrm/pulse-crm-backend/internal/repositories"
	"github.com/pulsecrm/pulse-crm-backend/pkg/jwt"
)

// AuthService handles admin authentication.
type AuthService struct {
	users  repositories.AdminUserRepository
	tokens *jwt.TokenService
}

// NewAuthService creates a new AuthService
func NewAuthService(users repositories.AdminUserRepository, tokens *jwt.TokenService) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Register creates a new admin account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*models.AdminUser, error) {
	_, err := s.users.FindByEmail(ctx, req.Email)
	if err == nil {
		return nil, errors.New("an account with this email already exists")
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.AdminUser{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashed),
		Role:     "admin",
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	user.Password = ""
	return user, nil
}

// Login verifies credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (string, *models.AdminUser, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(jwt.Claims{
		Subject: user.ID.Hex(),
		Email:   user.Email,
		Role:    user.Role,
	})
	if err != nil {
		return "", nil, err
	}

	user.Password = ""
	return token, user, nil
}
