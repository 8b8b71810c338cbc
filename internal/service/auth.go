package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tarotdeck/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 7 * 24 * time.Hour

// AuthService handles authentication, JWT, session hydration, and user management.
type AuthService struct {
	jwtSecret     string
	adminEmail    string
	adminPassword string
	users         UserStore
	now           Clock
}

// NewAuthService creates a new AuthService.
func NewAuthService(jwtSecret, adminEmail, adminPassword string, users UserStore) *AuthService {
	return &AuthService{
		jwtSecret:     jwtSecret,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
		users:         users,
		now:           time.Now,
	}
}

// SeedAdmin creates the default admin user if it doesn't exist.
func (s *AuthService) SeedAdmin(ctx context.Context) error {
	exists, err := s.users.Exists(ctx, s.adminEmail)
	if err != nil {
		return fmt.Errorf("failed to check admin existence: %w", err)
	}
	if exists {
		log.Printf("✅ Admin user already exists (%s)", s.adminEmail)
		return nil
	}

	if _, err := s.createUser(ctx, s.adminEmail, s.adminPassword, domain.RoleAdmin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	log.Printf("✅ Admin user created (%s)", s.adminEmail)
	return nil
}

// Register creates a regular account and signs it in.
func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.LoginResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}

	email := normalizeEmail(req.Email)
	exists, err := s.users.Exists(ctx, email)
	if err != nil {
		return nil, domain.ErrInternal("failed to check user", err)
	}
	if exists {
		return nil, domain.ErrBadRequest("email already registered")
	}

	user, err := s.createUser(ctx, email, req.Password, domain.RoleUser)
	if err != nil {
		return nil, domain.ErrInternal("failed to create user", err)
	}
	return s.issue(user)
}

// Login validates credentials against the database and returns a JWT token.
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}

	user, err := s.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if user == nil || user.Password == nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(req.Password)); err != nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}

	if _, err := s.expireIfLapsed(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// LoginWithGoogle finds the account for a verified Google identity, linking or creating it.
func (s *AuthService) LoginWithGoogle(ctx context.Context, sub, email string) (*domain.LoginResponse, error) {
	user, err := s.users.FindByGoogleSub(ctx, sub)
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}

	if user == nil {
		user, err = s.users.FindByEmail(ctx, normalizeEmail(email))
		if err != nil {
			return nil, domain.ErrInternal("failed to find user", err)
		}
		if user != nil {
			if err := s.users.LinkGoogleSub(ctx, user.ID, sub); err != nil {
				return nil, domain.ErrInternal("failed to link google account", err)
			}
			user.GoogleSub = &sub
		}
	}

	if user == nil {
		now := s.now()
		user = &domain.User{
			ID:        domain.NewID(),
			Email:     normalizeEmail(email),
			GoogleSub: &sub,
			Role:      domain.RoleUser,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, domain.ErrInternal("failed to create user", err)
		}
		log.Printf("[Auth] Created account %s from Google sign-in", user.Email)
	}

	if _, err := s.expireIfLapsed(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// VerifyToken validates a JWT token and returns the claims.
func (s *AuthService) VerifyToken(tokenStr string) (*domain.JWTClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized("invalid token claims")
	}

	return &domain.JWTClaims{
		Sub:   getClaimString(claims, "sub"),
		Email: getClaimString(claims, "email"),
		Role:  getClaimString(claims, "role"),
	}, nil
}

// Hydrate loads the current session for userID. A lapsed premium flag is cleared and
// persisted before the session is returned, so callers never observe stale premium.
func (s *AuthService) Hydrate(ctx context.Context, userID string) (*domain.Session, error) {
	user, err := s.hydrateUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return domain.NewSession(user), nil
}

func (s *AuthService) hydrateUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return nil, domain.ErrUnauthorized("account no longer exists")
	}
	if _, err := s.expireIfLapsed(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// expireIfLapsed performs the single corrective write for a lapsed premium flag.
func (s *AuthService) expireIfLapsed(ctx context.Context, user *domain.User) (bool, error) {
	now := s.now()
	if !user.PremiumLapsed(now) {
		return false, nil
	}
	changed, err := s.users.ExpirePremium(ctx, user.ID, now)
	if err != nil {
		return false, domain.ErrInternal("failed to expire premium", err)
	}
	user.IsPremium = false
	if changed {
		log.Printf("[Auth] Premium expired for %s (expiry %s)", user.ID, user.PremiumExpiry.Format(time.RFC3339))
	}
	return changed, nil
}

func (s *AuthService) issue(user *domain.User) (*domain.LoginResponse, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  user.Role,
		"exp":   now.Add(tokenTTL).Unix(),
		"iat":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, domain.ErrInternal("failed to sign token", err)
	}

	return &domain.LoginResponse{
		Token: signed,
		User: domain.LoginUser{
			ID:        user.ID,
			Email:     user.Email,
			Role:      user.Role,
			IsPremium: user.PremiumAt(now),
		},
	}, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// ListUsers returns all users (admin only).
func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.UserResponse, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list users", err)
	}

	now := s.now()
	responses := make([]*domain.UserResponse, len(users))
	for i, u := range users {
		responses[i] = domain.NewUserResponse(u)
		responses[i].IsPremium = u.PremiumAt(now)
	}
	return responses, nil
}

// CreateUser creates a new user with bcrypt password (admin only).
func (s *AuthService) CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.UserResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}

	email := normalizeEmail(req.Email)
	exists, err := s.users.Exists(ctx, email)
	if err != nil {
		return nil, domain.ErrInternal("failed to check user", err)
	}
	if exists {
		return nil, domain.ErrBadRequest("email already registered")
	}

	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}

	user, err := s.createUser(ctx, email, req.Password, role)
	if err != nil {
		return nil, domain.ErrInternal("failed to create user", err)
	}
	return domain.NewUserResponse(user), nil
}

// DeleteUser removes a user by ID (admin only). Readings, messages, payments and tickets cascade.
func (s *AuthService) DeleteUser(ctx context.Context, id string) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return domain.ErrInternal("failed to find user", err)
	}
	if user == nil {
		return domain.ErrNotFound("user not found")
	}
	if user.Role == domain.RoleAdmin {
		return domain.ErrBadRequest("cannot delete admin user")
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return domain.ErrInternal("failed to delete user", err)
	}
	return nil
}

// GetUserByID returns the hydrated profile for /api/auth/me.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*domain.UserResponse, error) {
	user, err := s.hydrateUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return domain.NewUserResponse(user), nil
}

func (s *AuthService) createUser(ctx context.Context, email, password, role string) (*domain.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hash := string(hashed)

	now := s.now()
	user := &domain.User{
		ID:        domain.NewID(),
		Email:     email,
		Password:  &hash,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
