// Package session holds the current authenticated identity and its lifecycle.
package session

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/learning-portal-api/internal/models"
	appErrors "github.com/noah-isme/learning-portal-api/pkg/errors"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ErrProfileMissing is returned when credentials are valid but no role profile exists.
var ErrProfileMissing = appErrors.New("PROFILE_MISSING", http.StatusForbidden, "no profile found for this account")

// Backend is the external auth service.
type Backend interface {
	SignUp(ctx context.Context, email, password string) (*models.AuthSession, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error)
	SignOut(ctx context.Context, token string) error
	// Session resolves a token into a live session, returning nil when there is none.
	Session(ctx context.Context, token string) (*models.AuthSession, error)
}

// ProfileStore reads and writes role profiles. FindProfile returns nil when absent.
type ProfileStore interface {
	FindProfile(ctx context.Context, id string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, profile *models.Profile) error
}

// Snapshot is an immutable view of the store state.
type Snapshot struct {
	Loading       bool
	Authenticated bool
	Identity      *models.Identity
}

// SignUpInput carries sign-up fields.
type SignUpInput struct {
	Email       string      `validate:"required,portal_email"`
	Password    string      `validate:"required"`
	DisplayName string      `validate:"required,max=120"`
	Role        models.Role `validate:"required,oneof=student admin"`
	AdminCode   string
}

type signInInput struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// Params groups Store dependencies.
type Params struct {
	Backend           Backend
	Profiles          ProfileStore
	Notifier          Notifier
	Logger            *zap.Logger
	Validator         *validator.Validate
	AdminCode         string
	MinPasswordLength int
}

// Store owns the current identity and notifies subscribers on every change.
type Store struct {
	backend   Backend
	profiles  ProfileStore
	notifier  Notifier
	logger    *zap.Logger
	validator *validator.Validate
	adminCode string
	minPass   int

	mu        sync.RWMutex
	loading   bool
	session   *models.AuthSession
	token     string
	identity  *models.Identity
	listeners map[int]func(Snapshot)
	nextID    int
}

// NewValidator returns a validator with the portal_email rule registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("portal_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidEmail reports whether email has the local@domain.tld shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NewStore constructs a Store in the loading state.
func NewStore(p Params) *Store {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Notifier == nil {
		p.Notifier = nopNotifier{}
	}
	if p.Validator == nil {
		p.Validator = NewValidator()
	}
	if p.MinPasswordLength <= 0 {
		p.MinPasswordLength = 6
	}
	return &Store{
		backend:   p.Backend,
		profiles:  p.Profiles,
		notifier:  p.Notifier,
		logger:    p.Logger,
		validator: p.Validator,
		adminCode: p.AdminCode,
		minPass:   p.MinPasswordLength,
		loading:   true,
		listeners: make(map[int]func(Snapshot)),
	}
}

// Init resolves an existing session for token and leaves the loading state.
func (s *Store) Init(ctx context.Context, token string) {
	token = strings.TrimSpace(token)
	var (
		sess     *models.AuthSession
		identity *models.Identity
	)
	if token != "" {
		resolved, err := s.backend.Session(ctx, token)
		if err != nil {
			s.logger.Debug("session resolution failed", zap.Error(err))
		} else if resolved != nil {
			sess = resolved
			identity = s.loadIdentity(ctx, resolved)
		}
	}
	if sess == nil {
		token = ""
	}

	s.mu.Lock()
	s.loading = false
	s.session = sess
	s.token = token
	s.identity = identity
	s.mu.Unlock()
	s.publish()
}

// SignIn authenticates with email and password.
func (s *Store) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	email = strings.TrimSpace(email)
	if err := s.validator.Struct(signInInput{Email: email, Password: password}); err != nil {
		appErr := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "email and password are required")
		s.notify(KindError, appErr.Message)
		return nil, appErr
	}

	sess, err := s.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.notify(KindError, appErrors.FromError(err).Message)
		return nil, err
	}

	identity := s.loadIdentity(ctx, sess)
	s.setSession(sess, identity)
	if identity == nil {
		s.notify(KindError, ErrProfileMissing.Message)
		return nil, appErrors.Clone(ErrProfileMissing, "")
	}
	s.notify(KindSuccess, "Signed in successfully")
	return identity, nil
}

// SignUp creates an account and its role profile, then makes it current.
func (s *Store) SignUp(ctx context.Context, in SignUpInput) (*models.Identity, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := s.validator.Struct(in); err != nil {
		appErr := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, signUpValidationMessage(in))
		s.notify(KindError, appErr.Message)
		return nil, appErr
	}
	if len(in.Password) < s.minPass {
		appErr := appErrors.Clone(appErrors.ErrValidation, "password is too short")
		s.notify(KindError, appErr.Message)
		return nil, appErr
	}
	if in.Role == models.RoleAdmin && in.AdminCode != s.adminCode {
		appErr := appErrors.Clone(appErrors.ErrInvalidAdminCode, "")
		s.notify(KindError, appErr.Message)
		return nil, appErr
	}

	sess, err := s.backend.SignUp(ctx, in.Email, in.Password)
	if err != nil {
		s.notify(KindError, appErrors.FromError(err).Message)
		return nil, err
	}

	profile := &models.Profile{ID: sess.UserID, Name: in.DisplayName, Role: in.Role}
	if err := s.profiles.UpsertProfile(ctx, profile); err != nil {
		s.logger.Error("profile upsert failed", zap.String("user_id", sess.UserID), zap.Error(err))
		s.setSession(sess, nil)
		appErr := appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save profile")
		s.notify(KindError, appErr.Message)
		return nil, appErr
	}

	identity := &models.Identity{ID: sess.UserID, Email: sess.Email, DisplayName: profile.Name, Role: profile.Role}
	s.setSession(sess, identity)
	s.notify(KindSuccess, "Account created successfully")
	return identity, nil
}

// SignOut clears the current identity and session. Calling it without a session is a no-op.
func (s *Store) SignOut(ctx context.Context) {
	s.mu.Lock()
	token := s.token
	hadSession := s.session != nil || s.identity != nil
	s.session = nil
	s.token = ""
	s.identity = nil
	s.mu.Unlock()

	if !hadSession {
		return
	}
	if token != "" {
		if err := s.backend.SignOut(ctx, token); err != nil {
			s.logger.Warn("backend sign out failed", zap.Error(err))
		}
	}
	s.publish()
	s.notify(KindSuccess, "Signed out successfully")
}

// Current returns the current identity or nil.
func (s *Store) Current() *models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Loading reports whether the initial session resolution is still pending.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Token returns the access token of the current session.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Session returns the current auth session or nil.
func (s *Store) Session() *models.AuthSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for change notifications and returns its cancel func.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Loading: s.loading, Authenticated: s.session != nil, Identity: s.identity}
}

func (s *Store) setSession(sess *models.AuthSession, identity *models.Identity) {
	s.mu.Lock()
	s.loading = false
	s.session = sess
	s.token = ""
	if sess != nil {
		s.token = sess.AccessToken
	}
	s.identity = identity
	s.mu.Unlock()
	s.publish()
}

func (s *Store) publish() {
	s.mu.RLock()
	snap := s.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (s *Store) loadIdentity(ctx context.Context, sess *models.AuthSession) *models.Identity {
	profile, err := s.profiles.FindProfile(ctx, sess.UserID)
	if err != nil {
		s.logger.Warn("profile lookup failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return nil
	}
	if profile == nil || !profile.Role.Valid() {
		return nil
	}
	return &models.Identity{ID: sess.UserID, Email: sess.Email, DisplayName: profile.Name, Role: profile.Role}
}

func (s *Store) notify(kind Kind, message string) {
	s.notifier.Notify(Notification{Kind: kind, Message: message})
}

func signUpValidationMessage(in SignUpInput) string {
	switch {
	case in.Email == "" || in.Password == "" || in.DisplayName == "":
		return "email, password and display name are required"
	case !ValidEmail(in.Email):
		return "please enter a valid email address"
	case !in.Role.Valid():
		return "role must be student or admin"
	default:
		return "invalid sign up payload"
	}
}
