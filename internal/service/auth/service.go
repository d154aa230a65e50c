// Package auth implements account registration, login and profile logic.
package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatlink-backend/internal/domain"
	apperrors "chatlink-backend/pkg/errors"
	"chatlink-backend/pkg/jwt"
	"chatlink-backend/pkg/logger"
	"chatlink-backend/pkg/password"
)

// UserRepository interface
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarImage string) error
	ListExcept(ctx context.Context, userID uuid.UUID) ([]*domain.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// PresenceRepository interface
type PresenceRepository interface {
	SetUserOffline(ctx context.Context, userID uuid.UUID) error
	IsUserOnline(ctx context.Context, userID uuid.UUID) (bool, error)
	GetOnlineUsers(ctx context.Context) ([]uuid.UUID, error)
}

// Service handles authentication business logic
type Service struct {
	userRepo      UserRepository
	presenceRepo  PresenceRepository
	jwtManager    *jwt.Manager
	httpClient    *http.Client
	avatarBaseURL string
}

// NewService creates a new auth service
func NewService(
	userRepo UserRepository,
	presenceRepo PresenceRepository,
	jwtManager *jwt.Manager,
) *Service {
	return &Service{
		userRepo:      userRepo,
		presenceRepo:  presenceRepo,
		jwtManager:    jwtManager,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		avatarBaseURL: "https://api.dicebear.com/7.x/avataaars/svg",
	}
}

// RegisterInput contains user registration data
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// RegisterOutput contains registration result
type RegisterOutput struct {
	User         *domain.UserResponse
	AccessToken  string
	RefreshToken string
}

// Register creates a new user account
func (s *Service) Register(ctx context.Context, input *RegisterInput) (*RegisterOutput, error) {
	if err := password.Validate(input.Password); err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}

	emailExists, err := s.userRepo.EmailExists(ctx, input.Email)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if emailExists {
		return nil, apperrors.EmailExistsError()
	}

	usernameExists, err := s.userRepo.UsernameExists(ctx, input.Username)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if usernameExists {
		return nil, apperrors.UsernameExistsError()
	}

	passwordHash, err := password.Hash(input.Password)
	if err != nil {
		return nil, apperrors.InternalError("Failed to process password")
	}

	user := &domain.User{
		UserID:       uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: passwordHash,
		IsAvatarSet:  false,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	accessToken, refreshToken, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	logger.Info("User registered",
		zap.String("user_id", user.UserID.String()),
		zap.String("username", user.Username))

	return &RegisterOutput{
		User:         user.ToResponse(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// LoginInput contains login credentials
type LoginInput struct {
	Username string
	Password string
}

// LoginOutput contains login result
type LoginOutput struct {
	User         *domain.UserResponse
	AccessToken  string
	RefreshToken string
}

// Login authenticates a user by username and password
func (s *Service) Login(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
	user, err := s.userRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		return nil, apperrors.InvalidCredentialsError()
	}

	if !password.Verify(user.PasswordHash, input.Password) {
		return nil, apperrors.InvalidCredentialsError()
	}

	accessToken, refreshToken, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	return &LoginOutput{
		User:         user.ToResponse(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// RefreshToken exchanges a valid refresh token for a new token pair
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*LoginOutput, error) {
	claims, err := s.jwtManager.ValidateToken(refreshToken)
	if err != nil {
		return nil, apperrors.InvalidTokenError("Invalid refresh token")
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.UserNotFoundError()
	}

	accessToken, newRefreshToken, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	return &LoginOutput{
		User:         user.ToResponse(),
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
	}, nil
}

// SetAvatar stores the chosen avatar image and marks the profile complete
func (s *Service) SetAvatar(ctx context.Context, userID uuid.UUID, avatarImage string) (*domain.UserResponse, error) {
	if avatarImage == "" {
		return nil, apperrors.MissingFieldError("image")
	}

	if err := s.userRepo.UpdateAvatar(ctx, userID, avatarImage); err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.UserNotFoundError()
	}

	return user.ToResponse(), nil
}

// ListContacts returns every registered user except the caller, each
// annotated with mirrored presence. The annotation is best-effort: a
// mirror failure leaves everyone marked offline rather than failing
// the contact list.
func (s *Service) ListContacts(ctx context.Context, userID uuid.UUID) ([]*domain.ContactResponse, error) {
	users, err := s.userRepo.ListExcept(ctx, userID)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	online := make(map[uuid.UUID]bool)
	if ids, err := s.presenceRepo.GetOnlineUsers(ctx); err != nil {
		logger.Warn("presence lookup failed, contacts unannotated",
			zap.Error(err))
	} else {
		for _, id := range ids {
			online[id] = true
		}
	}

	contacts := make([]*domain.ContactResponse, len(users))
	for i, user := range users {
		contacts[i] = &domain.ContactResponse{
			UserResponse: user.ToResponse(),
			IsOnline:     online[user.UserID],
		}
	}
	return contacts, nil
}

// IsOnline reports whether the given user currently holds a live
// realtime connection, per the presence mirror.
func (s *Service) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	isOnline, err := s.presenceRepo.IsUserOnline(ctx, userID)
	if err != nil {
		return false, apperrors.DatabaseError(err)
	}
	return isOnline, nil
}

// FetchAvatar proxies an avatar image for the given seed from the
// generator service and returns it base64 encoded, ready to store via
// SetAvatar. Keeps the generator off the browser's origin list.
func (s *Service) FetchAvatar(ctx context.Context, seed string) (string, error) {
	url := fmt.Sprintf("%s?seed=%s", s.avatarBaseURL, seed)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apperrors.InternalError("Failed to build avatar request")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", apperrors.WrapWithStatus(apperrors.ErrCodeInternal, "Avatar service unreachable", http.StatusBadGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewWithStatus(apperrors.ErrCodeInternal, "Avatar service error", http.StatusBadGateway)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperrors.InternalError("Failed to read avatar response")
	}

	return base64.StdEncoding.EncodeToString(body), nil
}

// Logout drops the user's presence mirror. Best effort, the access
// token simply expires on its own.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.presenceRepo.SetUserOffline(ctx, userID); err != nil {
		logger.Warn("Failed to clear presence during logout",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
	return nil
}

func (s *Service) issueTokens(user *domain.User) (string, string, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(user.UserID, user.Username)
	if err != nil {
		return "", "", apperrors.InternalError("Failed to generate access token")
	}

	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.UserID)
	if err != nil {
		return "", "", apperrors.InternalError("Failed to generate refresh token")
	}

	return accessToken, refreshToken, nil
}
