package service

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"wattson/internal/model"
	"wattson/internal/repository"
	"wattson/pkg/token"
)

// ErrInvalidCredentials is returned for a bad username/password pair.
var ErrInvalidCredentials = errors.New("invalid username or password")

// UserService manages accounts, authentication and athlete profiles.
type UserService interface {
	Register(username, password, role string) (*model.User, error)
	Login(username, password string) (access, refresh string, user *model.User, err error)
	RefreshToken(refreshToken string) (string, error)
	GetByUsername(username string) (*model.User, error)
	SetProfile(userID uint, fields map[string]string) (map[string]string, error)
	GetProfile(userID uint) (map[string]string, error)
}

type userService struct {
	users      repository.UserRepository
	profiles   repository.ProfileRepository
	jwtManager *token.JWTManager
}

// NewUserService creates a UserService.
func NewUserService(users repository.UserRepository, profiles repository.ProfileRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		users:      users,
		profiles:   profiles,
		jwtManager: jwtManager,
	}
}

// Register creates an account. Role defaults to athlete; coach accounts
// are created explicitly (they manage the knowledge base).
func (s *userService) Register(username, password, role string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	if role == "" {
		role = model.RoleAthlete
	}
	if role != model.RoleAthlete && role != model.RoleCoach {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	if _, err := s.users.FindByUsername(username); err == nil {
		return nil, fmt.Errorf("username %q is already taken", username)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("look up username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{Username: username, PasswordHash: string(hash), Role: role}
	if err := s.users.Create(user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login verifies the credentials and issues an access/refresh token pair.
func (s *userService) Login(username, password string) (string, string, *model.User, error) {
	user, err := s.users.FindByUsername(username)
	if err != nil {
		return "", "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	access, err := s.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", nil, fmt.Errorf("generate refresh token: %w", err)
	}
	return access, refresh, user, nil
}

// RefreshToken exchanges a valid refresh token for a new access token.
func (s *userService) RefreshToken(refreshToken string) (string, error) {
	claims, err := s.jwtManager.VerifyToken(refreshToken)
	if err != nil {
		return "", fmt.Errorf("invalid refresh token: %w", err)
	}
	return s.jwtManager.GenerateToken(claims.UserID, claims.Username, claims.Role)
}

// GetByUsername loads a user account.
func (s *userService) GetByUsername(username string) (*model.User, error) {
	return s.users.FindByUsername(username)
}

// SetProfile upserts profile fields and returns the merged profile.
func (s *userService) SetProfile(userID uint, fields map[string]string) (map[string]string, error) {
	if len(fields) == 0 {
		return nil, errors.New("no profile fields provided")
	}
	if err := s.profiles.Upsert(userID, fields); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return s.profiles.Get(userID)
}

// GetProfile returns the athlete's life-context profile.
func (s *userService) GetProfile(userID uint) (map[string]string, error) {
	return s.profiles.Get(userID)
}
