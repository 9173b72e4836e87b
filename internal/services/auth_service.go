package services

import (
	"errors"
	"fmt"
	"strings"

	"cryoclean_backend/internal/models"
	"cryoclean_backend/internal/repositories"
	"cryoclean_backend/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already registered")
	ErrAccountDisabled    = errors.New("account is deactivated")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

// --- Auth DTOs ---

// RegisterRequest DTO.
type RegisterRequest struct {
	FullName string  `json:"fullName" binding:"required"`
	Email    string  `json:"email" binding:"required,email"`
	Phone    *string `json:"phone"`
	Password string  `json:"password" binding:"required,min=8"`
}

// LoginRequest DTO.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse DTO.
type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken,omitempty"`
}

// AuthService handles registration, login and user administration.
type AuthService interface {
	Register(req RegisterRequest) (*AuthResponse, error)
	Login(req LoginRequest) (*AuthResponse, error)
	RefreshTokens(userID int64) (*AuthResponse, error)
	GetProfile(userID int64) (*models.User, error)

	// Admin operations.
	GetUsers(page, pageSize int) ([]models.User, int, error)
	SetUserActive(userID int64, active bool) (*models.User, error)
}

type authService struct {
	userRepo  repositories.UserRepository
	txManager repositories.TxManager
}

// NewAuthService creates a new instance of AuthService.
func NewAuthService(ur repositories.UserRepository, txm repositories.TxManager) AuthService {
	return &authService{userRepo: ur, txManager: txm}
}

func (s *authService) issueTokens(user *models.User) (*AuthResponse, error) {
	accessToken, err := utils.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	refreshToken, err := utils.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	return &AuthResponse{User: user, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *authService) Register(req RegisterRequest) (*AuthResponse, error) {
	hashedPasswordBytes, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		FullName:     strings.TrimSpace(req.FullName),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        req.Phone,
		PasswordHash: string(hashedPasswordBytes),
		Role:         models.RoleUser,
		TotalPoints:  0,
		IsActive:     true,
	}

	err = s.txManager.WithinTx(func(tx repositories.SQLExecutor) error {
		_, createErr := s.userRepo.CreateUser(tx, user)
		return createErr
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %s", ErrEmailExists, user.Email)
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	return s.issueTokens(user)
}

func (s *authService) Login(req LoginRequest) (*AuthResponse, error) {
	user, err := s.userRepo.GetUserByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	return s.issueTokens(user)
}

func (s *authService) RefreshTokens(userID int64) (*AuthResponse, error) {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: ID %d", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return s.issueTokens(user)
}

func (s *authService) GetProfile(userID int64) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: ID %d", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return user, nil
}

func (s *authService) GetUsers(page, pageSize int) ([]models.User, int, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	users, totalCount, err := s.userRepo.GetUsers(page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, totalCount, nil
}

func (s *authService) SetUserActive(userID int64, active bool) (*models.User, error) {
	err := s.txManager.WithinTx(func(tx repositories.SQLExecutor) error {
		return s.userRepo.SetActive(tx, userID, active)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: ID %d", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("failed to update user %d: %w", userID, err)
	}
	return s.userRepo.GetUserByID(userID)
}
