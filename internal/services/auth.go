package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yungbote/lifeos-backend/internal/platform/apierr"
	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/repos"
	"github.com/yungbote/lifeos-backend/internal/types"
)

const tokenTTL = 24 * time.Hour

type AuthUser struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

type AuthResponse struct {
	Token string   `json:"token"`
	User  AuthUser `json:"user"`
}

type AuthService interface {
	Register(ctx context.Context, username, password string) (*AuthResponse, error)
	Login(ctx context.Context, username, password string) (*AuthResponse, error)
	Me(ctx context.Context, userID uuid.UUID) (*AuthUser, error)
	// ParseToken validates a bearer token and returns the embedded identity.
	ParseToken(token string) (uuid.UUID, string, error)
}

type authService struct {
	log    *logger.Logger
	users  repos.UserRepo
	secret []byte
}

func NewAuthService(log *logger.Logger, users repos.UserRepo, jwtSecret string) (AuthService, error) {
	if strings.TrimSpace(jwtSecret) == "" {
		return nil, fmt.Errorf("missing JWT secret")
	}
	return &authService{
		log:    log.With("service", "AuthService"),
		users:  users,
		secret: []byte(jwtSecret),
	}, nil
}

func (s *authService) Register(ctx context.Context, username, password string) (*AuthResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apierr.New(http.StatusBadRequest, "username and password are required", nil)
	}

	exists, err := s.users.UsernameExists(ctx, nil, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, apierr.New(http.StatusBadRequest, "Username already exists", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &types.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.users.Create(ctx, nil, []*types.User{user}); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("User registered", "user_id", user.ID, "username", username)

	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	username = strings.TrimSpace(username)
	found, err := s.users.GetByUsernames(ctx, nil, []string{username})
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if len(found) == 0 {
		return nil, apierr.New(http.StatusUnauthorized, "Invalid credentials", nil)
	}
	user := found[0]
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apierr.New(http.StatusUnauthorized, "Invalid credentials", nil)
	}
	return s.issue(user)
}

func (s *authService) Me(ctx context.Context, userID uuid.UUID) (*AuthUser, error) {
	found, err := s.users.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if len(found) == 0 {
		return nil, apierr.New(http.StatusUnauthorized, "user not found", nil)
	}
	return &AuthUser{ID: found[0].ID, Username: found[0].Username}, nil
}

func (s *authService) issue(user *types.User) (*AuthResponse, error) {
	claims := jwt.MapClaims{
		"user_id":  user.ID.String(),
		"username": user.Username,
		"exp":      time.Now().Add(tokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &AuthResponse{
		Token: token,
		User:  AuthUser{ID: user.ID, Username: user.Username},
	}, nil
}

func (s *authService) ParseToken(raw string) (uuid.UUID, string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, "", apierr.New(http.StatusUnauthorized, "invalid token", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, "", apierr.New(http.StatusUnauthorized, "invalid token claims", nil)
	}
	rawID, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", apierr.New(http.StatusUnauthorized, "invalid user_id claim", err)
	}
	username, _ := claims["username"].(string)
	return userID, username, nil
}
