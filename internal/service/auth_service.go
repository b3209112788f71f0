package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notesync/internal/domain"
	"notesync/internal/repository"
	"notesync/pkg/hash"
	"notesync/pkg/jwt"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// sessionCacheSize bounds the in-process session cache. The least recently
// used entry is dropped when it is full.
const sessionCacheSize = 10_000

// AuthService registers users and manages login sessions. Sessions live in
// the session store; a small in-process cache answers repeated lookups for
// ordinary requests, while fresh lookups always go to the store so a logout
// on one server is honoured everywhere.
type AuthService struct {
	userRepo      repository.UserRepository
	sessionRepo   repository.SessionRepository
	jwtSecret     string
	jwtExpiration time.Duration
	cacheTTL      time.Duration
	clock         func() time.Time
	cache         *expirable.LRU[string, cachedSession]
}

type cachedSession struct {
	identity  domain.Identity
	expiresAt time.Time
}

func NewAuthService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	jwtSecret string,
	jwtExp, cacheTTL time.Duration,
) *AuthService {
	s := &AuthService{
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExp,
		cacheTTL:      cacheTTL,
		clock:         time.Now,
	}
	if cacheTTL > 0 {
		s.cache = expirable.NewLRU[string, cachedSession](sessionCacheSize, nil, cacheTTL)
	}
	return s
}

func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) error {
	emailExists, err := s.userRepo.EmailExists(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("failed to check email existence: %w", err)
	}
	if emailExists {
		return ErrEmailTaken
	}

	usernameExists, err := s.userRepo.UsernameExists(ctx, req.Username)
	if err != nil {
		return fmt.Errorf("failed to check username existence: %w", err)
	}
	if usernameExists {
		return ErrUsernameTaken
	}

	hashedPassword, err := hash.Hash(req.Password)
	if err != nil {
		if errors.Is(err, hash.ErrPasswordTooShort) {
			return fmt.Errorf("%v: %w", err, domain.ErrValidation)
		}
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.clock().UTC()
	user := &domain.User{
		ID:        uuid.New().String(),
		Username:  req.Username,
		Email:     req.Email,
		Password:  hashedPassword,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// Login checks the credentials and opens a new session. The returned access
// token is bound to that session.
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := hash.Compare(user.Password, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.clock().UTC()
	session := &domain.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		DeviceID:  req.DeviceID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.jwtExpiration),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	accessToken, err := jwt.GenerateSessionToken(user.ID, session.ID, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	user.Password = ""

	return &domain.LoginResponse{
		User:        user,
		AccessToken: accessToken,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}

// Logout ends the caller's session. Tokens issued for it stop working.
func (s *AuthService) Logout(ctx context.Context, identity domain.Identity) error {
	s.evict(identity.SessionID)
	if err := s.sessionRepo.Delete(ctx, identity.SessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Authenticate resolves a bearer token to the caller's identity. With fresh
// set the session store is always consulted and the cache refreshed.
func (s *AuthService) Authenticate(ctx context.Context, token string, fresh bool) (*domain.Identity, error) {
	claims, err := jwt.ValidateToken(token, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrUnauthorized)
	}
	if claims.SessionID == "" {
		return nil, ErrSessionRevoked
	}

	if !fresh {
		if id, ok := s.cached(claims.SessionID); ok {
			return id, nil
		}
	}

	session, err := s.sessionRepo.GetByID(ctx, claims.SessionID)
	if err != nil {
		s.evict(claims.SessionID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.UserID != claims.UserID || !s.clock().Before(session.ExpiresAt) {
		s.evict(claims.SessionID)
		return nil, ErrSessionRevoked
	}

	identity := domain.Identity{
		UserID:    session.UserID,
		SessionID: session.ID,
		DeviceID:  session.DeviceID,
	}
	s.remember(identity, session.ExpiresAt)
	return &identity, nil
}

// cached returns a remembered identity. Entries expire after cacheTTL or
// at the session's own expiry, whichever comes first.
func (s *AuthService) cached(sessionID string) (*domain.Identity, bool) {
	if s.cache == nil {
		return nil, false
	}
	entry, ok := s.cache.Get(sessionID)
	if !ok {
		return nil, false
	}
	if !s.clock().Before(entry.expiresAt) {
		s.cache.Remove(sessionID)
		return nil, false
	}
	id := entry.identity
	return &id, true
}

func (s *AuthService) remember(identity domain.Identity, sessionExpiry time.Time) {
	if s.cache == nil {
		return
	}
	expiresAt := s.clock().Add(s.cacheTTL)
	if sessionExpiry.Before(expiresAt) {
		expiresAt = sessionExpiry
	}
	s.cache.Add(identity.SessionID, cachedSession{identity: identity, expiresAt: expiresAt})
}

func (s *AuthService) evict(sessionID string) {
	if s.cache != nil {
		s.cache.Remove(sessionID)
	}
}
