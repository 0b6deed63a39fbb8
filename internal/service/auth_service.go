package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/learning-portal-api/internal/models"
	"github.com/noah-isme/learning-portal-api/internal/repository"
	appErrors "github.com/noah-isme/learning-portal-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	CreateSession(ctx context.Context, session *models.AuthSession) error
	FindSession(ctx context.Context, id string) (*models.AuthSession, error)
	RevokeSession(ctx context.Context, id string, revokedAt time.Time) error
	DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// Messages surfaced verbatim to the user.
const (
	msgInvalidCredentials = "Invalid login credentials"
	msgAlreadyRegistered  = "User already registered"
)

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthService is the credential backend: it creates accounts, issues session
// tokens and resolves them back into sessions.
type AuthService struct {
	repo   authUserRepository
	logger *zap.Logger
	config AuthConfig
	now    func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	return &AuthService{repo: repo, logger: logger, config: config, now: func() time.Time { return time.Now().UTC() }}
}

// SignUp creates the credential record and opens a session for it.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (*models.AuthSession, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{ID: uuid.NewString(), Email: strings.ToLower(strings.TrimSpace(email)), PasswordHash: string(hash)}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, appErrors.Clone(appErrors.ErrAuth, msgAlreadyRegistered)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}

	return s.openSession(ctx, user)
}

// SignInWithPassword verifies credentials and opens a session.
func (s *AuthService) SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAuth, msgInvalidCredentials)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrAuth, msgInvalidCredentials)
	}

	return s.openSession(ctx, user)
}

// SignOut revokes the session referenced by token. Unknown or invalid tokens are ignored.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil
	}
	if err := s.repo.RevokeSession(ctx, claims.SessionID, s.now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke session")
	}
	return nil
}

// Session resolves token into its live session. It returns nil for invalid,
// expired and revoked tokens.
func (s *AuthService) Session(ctx context.Context, token string) (*models.AuthSession, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, nil
	}

	session, err := s.repo.FindSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if !session.Active(s.now()) || session.UserID != claims.Subject {
		return nil, nil
	}
	session.AccessToken = token
	return session, nil
}

// PurgeExpiredSessions removes sessions that expired before now.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	removed, err := s.repo.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge sessions")
	}
	if removed > 0 {
		s.logger.Info("expired sessions purged", zap.Int64("count", removed))
	}
	return removed, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) openSession(ctx context.Context, user *models.User) (*models.AuthSession, error) {
	issuedAt := s.now()
	session := &models.AuthSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Email:     user.Email,
		CreatedAt: issuedAt,
		ExpiresAt: issuedAt.Add(s.config.AccessTokenExpiry),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}

	token, err := s.generateAccessToken(session)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	session.AccessToken = token
	s.logger.Debug("session opened", zap.String("user_id", user.ID), zap.String("session_id", session.ID))
	return session, nil
}

func (s *AuthService) generateAccessToken(session *models.AuthSession) (string, error) {
	claims := &models.SessionClaims{
		SessionID: session.ID,
		Email:     session.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   session.UserID,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			NotBefore: jwt.NewNumericDate(session.CreatedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessTokenSecret))
}
