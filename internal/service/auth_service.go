package service

import (
	"context"
	"errors"

	"inmopresence/config"
	"inmopresence/internal/auth"
	"inmopresence/internal/models"
	"inmopresence/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCreds = errors.New("invalid email or password")

type AuthService struct {
	cfg      *config.Config
	profiles *repository.ProfileRepository
}

func NewAuthService(cfg *config.Config, profiles *repository.ProfileRepository) *AuthService {
	return &AuthService{cfg: cfg, profiles: profiles}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Profile, string, string, error) {
	p, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", "", ErrInvalidCreds
		}
		return nil, "", "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return nil, "", "", ErrInvalidCreds
	}
	access, err := auth.GenerateAccessToken(&s.cfg.JWT, p.ID, p.Email, p.Role)
	if err != nil {
		return nil, "", "", err
	}
	refresh, err := auth.GenerateRefreshToken(&s.cfg.JWT, p.ID)
	if err != nil {
		return nil, "", "", err
	}
	return p, access, refresh, nil
}

// Refresh exchanges a refresh token for a new access token. The profile
// is re-read so role changes take effect on rotation.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	userID, err := auth.ParseRefreshToken(&s.cfg.JWT, refreshToken)
	if err != nil {
		return "", err
	}
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return "", auth.ErrInvalidToken
	}
	return auth.GenerateAccessToken(&s.cfg.JWT, p.ID, p.Email, p.Role)
}
