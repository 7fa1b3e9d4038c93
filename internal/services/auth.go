package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"taskify/internal/models"
	"taskify/internal/repositories"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = repositories.ErrDuplicateUsername
	ErrInvalidToken       = errors.New("invalid token")
)

// Lengths are enforced when the request is bound.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

type AuthConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BCryptCost int
}

// AuthResult is returned by register, login and refresh.
type AuthResult struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	Username     string `json:"username"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Identity is what a verified access token says about its bearer.
type Identity struct {
	UserID   uuid.UUID
	Username string
}

type TokenVerifier interface {
	VerifyToken(token string) (Identity, error)
}

type AuthService interface {
	TokenVerifier
	Register(ctx context.Context, username, password string) (AuthResult, error)
	Login(ctx context.Context, username, password string) (AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	CurrentUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type AuthServiceImpl struct {
	users   repositories.UserStore
	refresh RefreshTokenStore
	config  AuthConfig
	now     func() time.Time
}

func NewAuthService(users repositories.UserStore, refresh RefreshTokenStore, config AuthConfig) *AuthServiceImpl {
	if config.AccessTTL <= 0 {
		config.AccessTTL = time.Hour
	}
	if config.RefreshTTL <= 0 {
		config.RefreshTTL = 7 * 24 * time.Hour
	}
	if config.BCryptCost == 0 {
		config.BCryptCost = bcrypt.DefaultCost
	}
	if refresh == nil {
		refresh = NewMemoryRefreshTokenStore()
	}
	return &AuthServiceImpl{users: users, refresh: refresh, config: config, now: time.Now}
}

func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return invalid("username may only contain letters, digits or underscores")
	}
	return nil
}

func (s *AuthServiceImpl) Register(ctx context.Context, username, password string) (AuthResult, error) {
	if err := validateUsername(username); err != nil {
		return AuthResult{}, err
	}

	hashed, err := HashPassword(password, s.config.BCryptCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed to generate user ID: %w", err)
	}

	now := s.now().UTC()
	user := &models.User{
		ID:        id,
		Username:  username,
		Password:  hashed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return AuthResult{}, err
	}

	return s.issue(ctx, user.ID, user.Username)
}

func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (AuthResult, error) {
	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repositories.ErrUserNotFound) {
		return AuthResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return AuthResult{}, err
	}
	if !VerifyPassword(user.Password, password) {
		return AuthResult{}, ErrInvalidCredentials
	}

	return s.issue(ctx, user.ID, user.Username)
}

// Refresh exchanges a refresh token for a new pair. The old token is
// consumed whether or not issuing the new pair succeeds.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return AuthResult{}, ErrInvalidRefreshToken
	}

	record, err := s.refresh.Consume(ctx, refreshToken)
	if err != nil {
		return AuthResult{}, err
	}

	if _, err := s.users.FindByID(ctx, record.UserID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidRefreshToken
		}
		return AuthResult{}, err
	}

	return s.issue(ctx, record.UserID, record.Username)
}

func (s *AuthServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.refresh.Revoke(ctx, refreshToken)
}

func (s *AuthServiceImpl) CurrentUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *AuthServiceImpl) issue(ctx context.Context, userID uuid.UUID, username string) (AuthResult, error) {
	now := s.now()

	claims := jwt.MapClaims{
		"user_id":  userID.String(),
		"username": username,
		"iss":      s.config.Issuer,
		"iat":      now.Unix(),
		"exp":      now.Add(s.config.AccessTTL).Unix(),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed to sign token: %w", err)
	}

	refreshID, err := uuid.NewV4()
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	record := models.RefreshToken{
		Token:     refreshID.String(),
		UserID:    userID,
		Username:  username,
		ExpiresAt: now.Add(s.config.RefreshTTL),
	}
	if err := s.refresh.Save(ctx, record); err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		Token:        accessToken,
		RefreshToken: record.Token,
		Username:     username,
		ExpiresIn:    int64(s.config.AccessTTL.Seconds()),
	}, nil
}

func (s *AuthServiceImpl) VerifyToken(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	rawID, ok := claims["user_id"].(string)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	userID, err := uuid.FromString(rawID)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	username, _ := claims["username"].(string)

	return Identity{UserID: userID, Username: username}, nil
}
