package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"letterflow/disposition"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be at least 8 characters")
	// ErrInactiveAccount signals the account has been deactivated.
	ErrInactiveAccount = errors.New("auth: account is inactive")
)

// Service handles authentication business logic.
type Service struct {
	repo      Repository
	jwtSecret []byte
	tokenTTL  time.Duration
}

// LoginResult bundles the token and domain user returned after a successful login.
type LoginResult struct {
	Token string
	User  User
}

// NewService creates a new authentication service.
func NewService(repo Repository, jwtSecret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Register creates a new account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if len(req.Password) < 8 {
		return nil, ErrWeakPassword
	}
	if req.Email == "" || req.FullName == "" || req.NIP == "" {
		return nil, fmt.Errorf("auth: nip, email and full_name are required")
	}
	if !isValidRole(req.RoleID) {
		return nil, fmt.Errorf("auth: invalid role code %d", req.RoleID)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	position := req.Position
	if position != nil && strings.TrimSpace(*position) == "" {
		position = nil
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		NIP:          req.NIP,
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: string(passwordHash),
		RoleID:       req.RoleID,
		Position:     position,
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// Login authenticates a user and returns a JWT token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if !user.Active {
		return LoginResult{}, ErrInactiveAccount
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}

	return LoginResult{
		Token: token,
		User:  user,
	}, nil
}

// GetUserByID retrieves user information by ID.
func (s *Service) GetUserByID(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// VerifyToken validates a session token and resolves the caller identity.
func (s *Service) VerifyToken(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("auth: parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("auth: invalid token")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return Identity{}, fmt.Errorf("auth: invalid user_id in token")
	}
	roleFloat, ok := claims["role_id"].(float64)
	if !ok {
		return Identity{}, fmt.Errorf("auth: invalid role_id in token")
	}
	roleID := int(roleFloat)
	if !isValidRole(roleID) {
		return Identity{}, fmt.Errorf("auth: invalid role code %d in token", roleID)
	}

	ident := Identity{UserID: userID, RoleID: roleID}
	if position, ok := claims["position"].(string); ok && position != "" {
		ident.Position = &position
	}
	return ident, nil
}

// Capability adapts the identity to the routing engine's permission input.
func (i Identity) Capability() disposition.Capability {
	return disposition.Capability{
		UserID:   i.UserID,
		RoleID:   i.RoleID,
		Position: i.Position,
	}
}

// generateToken creates a session token carrying the identity claims.
func (s *Service) generateToken(user User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role_id": user.RoleID,
		"exp":     time.Now().Add(s.tokenTTL).Unix(),
		"iat":     time.Now().Unix(),
	}
	if user.Position != nil {
		claims["position"] = *user.Position
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func isValidRole(roleID int) bool {
	switch roleID {
	case disposition.RoleCoordinator,
		disposition.RoleLeadership,
		disposition.RoleInboundArchivist,
		disposition.RoleOutboundArchivist,
		disposition.RoleGeneral:
		return true
	default:
		return false
	}
}
