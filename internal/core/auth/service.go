package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/espcontrol/espcontrol-backend-go/internal/config"
	"github.com/espcontrol/espcontrol-backend-go/internal/database/models"
	"github.com/espcontrol/espcontrol-backend-go/internal/database/repositories"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Service handles authentication business logic
type Service struct {
	userRepo    repositories.UserRepository
	jwtSecret   string
	tokenExpiry int
	logger      *logrus.Logger
}

// NewService creates a new authentication service
func NewService(userRepo repositories.UserRepository, jwtSecret string, tokenExpiry int, logger *logrus.Logger) *Service {
	return &Service{
		userRepo:    userRepo,
		jwtSecret:   jwtSecret,
		tokenExpiry: tokenExpiry,
		logger:      logger,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *UserInfo `json:"user"`
}

// UserInfo represents user information for responses
type UserInfo struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenClaims represents JWT token claims
type TokenClaims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Login authenticates a user and returns a JWT token
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		s.logger.WithField("username", req.Username).Warn("Login attempt with non-existent username")
		return nil, fmt.Errorf("invalid username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.WithFields(logrus.Fields{
			"user_id":  user.ID,
			"username": user.Username,
		}).Warn("Login attempt with incorrect password")
		return nil, fmt.Errorf("invalid username or password")
	}

	expiresAt := time.Now().Add(time.Duration(s.tokenExpiry) * time.Second)
	claims := &TokenClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "espcontrol-backend-go",
			Subject:   fmt.Sprintf("%d", user.ID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign JWT token")
		return nil, fmt.Errorf("failed to generate token")
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("User logged in successfully")

	return &LoginResponse{
		Token:     tokenString,
		ExpiresAt: expiresAt,
		User: &UserInfo{
			ID:        user.ID,
			Username:  user.Username,
			CreatedAt: user.CreatedAt,
		},
	}, nil
}

// ValidateToken validates a JWT token and returns user information
func (s *Service) ValidateToken(tokenString string) (*UserInfo, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return &UserInfo{
			ID:       claims.UserID,
			Username: claims.Username,
		}, nil
	}

	return nil, fmt.Errorf("invalid token claims")
}

// UpdatePassword updates a user's password after verifying the current one
func (s *Service) UpdatePassword(ctx context.Context, userID int, oldPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("user not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return fmt.Errorf("current password is incorrect")
	}

	if len(newPassword) < 6 {
		return fmt.Errorf("new password must be at least 6 characters long")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		s.logger.WithError(err).Error("Failed to hash new password")
		return fmt.Errorf("failed to process new password")
	}

	user.PasswordHash = string(hashedPassword)
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.WithError(err).Errorf("Failed to update password for user: %d", userID)
		return fmt.Errorf("failed to update password")
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"username": user.Username,
	}).Info("User password updated successfully")

	return nil
}

// Bootstrap creates the configured default admin when the users table is
// empty, so a fresh install is reachable before any CLI setup
func (s *Service) Bootstrap(ctx context.Context, cfg config.BootstrapUser) error {
	if !cfg.Enabled {
		return nil
	}

	count, err := s.userRepo.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	if cfg.Password == "" {
		s.logger.Warn("No users exist and no bootstrap password configured; skipping default admin")
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	user := &models.User{
		Username:     cfg.Username,
		PasswordHash: string(hashedPassword),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create bootstrap user: %w", err)
	}

	s.logger.WithField("username", cfg.Username).Info("Bootstrap admin user created")
	return nil
}
