package identities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mpalomaki/nick/internal/database"
	"github.com/mpalomaki/nick/pkg/models"
)

// Service-level sentinel errors
var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInactiveUser       = errors.New("user is inactive")
)

// TokenClaims represents JWT token claims
type TokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Roles  []string  `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims include the given role.
func (c *TokenClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IdentityService defines user and role operations
type IdentityService interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
	ValidateToken(tokenString string) (*TokenClaims, error)
	CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error)
	GrantRole(ctx context.Context, userID uuid.UUID, role string) error
	GrantRoleTx(tx *gorm.DB, userID uuid.UUID, role string) error
}

// Service implements IdentityService
type Service struct {
	logger     *zap.Logger
	db         *gorm.DB
	jwtSecret  []byte
	jwtExpiry  time.Duration
	jwtIssuer  string
	bcryptCost int
}

// NewService creates a new identity service
func NewService(logger *zap.Logger, db *gorm.DB, jwtSecret string, jwtExpiry time.Duration, issuer string) (*Service, error) {
	if jwtSecret == "" {
		jwtSecret = "dev-only-insecure-secret"
		logger.Warn("JWT secret not configured, using development default")
	}
	return &Service{
		logger:     logger,
		db:         db,
		jwtSecret:  []byte(jwtSecret),
		jwtExpiry:  jwtExpiry,
		jwtIssuer:  issuer,
		bcryptCost: bcrypt.DefaultCost,
	}, nil
}

// Login authenticates a user and issues a signed token
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.Active {
		return nil, ErrInactiveUser
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(&user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.Info("User logged in", zap.String("user_id", user.ID.String()))

	return &models.LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int(s.jwtExpiry.Seconds()),
		User:      &user,
	}, nil
}

func (s *Service) issueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &TokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		Roles:  user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.jwtIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken parses and verifies a signed token
func (s *Service) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*TokenClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CreateUser provisions a new user with a hashed password
func (s *Service) CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	roles := req.Roles
	if len(roles) == 0 {
		roles = []string{models.RoleReader}
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		Roles:        roles,
		Active:       true,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User created", zap.String("user_id", user.ID.String()), zap.Strings("roles", roles))
	return user, nil
}

// GetUser fetches a user by ID
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &user, nil
}

// ListUsers returns a page of users with the total count
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	var users []*models.User
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// GrantRole adds a role to a user if not already held
func (s *Service) GrantRole(ctx context.Context, userID uuid.UUID, role string) error {
	return s.GrantRoleTx(s.db.WithContext(ctx), userID, role)
}

// GrantRoleTx is GrantRole against a caller-supplied transaction handle. The
// documents approval flow uses it so reader grants commit atomically with the
// lifecycle transition.
func (s *Service) GrantRoleTx(tx *gorm.DB, userID uuid.UUID, role string) error {
	var user models.User
	if err := tx.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to fetch user: %w", err)
	}

	if user.HasRole(role) {
		return nil
	}

	user.Roles = append(user.Roles, role)
	if err := tx.Model(&user).Update("roles", user.Roles).Error; err != nil {
		return fmt.Errorf("failed to grant role: %w", err)
	}

	s.logger.Info("Role granted",
		zap.String("user_id", userID.String()),
		zap.String("role", role))
	return nil
}
