package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"eventmanager/internal/clock"
	"eventmanager/internal/domain"
)

type authService struct {
	userRepo       domain.UserRepository
	hasher         domain.PasswordHasher
	issuer         domain.TokenIssuer
	audit          domain.AuditService
	clock          clock.Clock
	logger         *slog.Logger
	jwtExpiry      time.Duration
	contextTimeout time.Duration
}

// NewAuthService creates an AuthService. audit may be nil.
func NewAuthService(userRepo domain.UserRepository, hasher domain.PasswordHasher, issuer domain.TokenIssuer,
	audit domain.AuditService, clk clock.Clock, logger *slog.Logger, jwtExpiry, timeout time.Duration) domain.AuthService {
	return &authService{
		userRepo:       userRepo,
		hasher:         hasher,
		issuer:         issuer,
		audit:          audit,
		clock:          clk,
		logger:         logger,
		jwtExpiry:      jwtExpiry,
		contextTimeout: timeout,
	}
}

func (s *authService) Register(ctx context.Context, username, email, password string, actor domain.Actor) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := validateUser(username, email, password); err != nil {
		return nil, err
	}

	salt, err := s.hasher.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	hash, err := s.hasher.Hash(salt, password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Username:     strings.TrimSpace(username),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Role:         domain.RoleUser,
		PasswordHash: hash,
		Salt:         salt,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateUser) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username)

	actor.UserID, actor.Username = user.ID, user.Username
	s.record(ctx, newAuditEntry(actor, domain.AuditCreate, domain.AuditCategoryUser, "user", fmt.Sprint(user.ID),
		nil, user, ""))
	return user, nil
}

func (s *authService) Login(ctx context.Context, username, password string, actor domain.Actor) (string, *domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	username = strings.TrimSpace(username)
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil || s.hasher.Compare(user.PasswordHash, user.Salt, password) != nil {
		actor.Username = username
		s.record(ctx, newAuditEntry(actor, domain.AuditFailedLogin, domain.AuditCategorySecurity, "user", "",
			nil, nil, "invalid credentials"))
		s.logger.WarnContext(ctx, "login failed", "username", username, "ip", actor.IPAddress)
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(user, s.jwtExpiry)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	actor.UserID, actor.Username = user.ID, user.Username
	s.record(ctx, newAuditEntry(actor, domain.AuditLogin, domain.AuditCategorySecurity, "user", fmt.Sprint(user.ID),
		nil, nil, ""))
	return token, user, nil
}

func (s *authService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	return s.userRepo.GetByID(ctx, id)
}

func (s *authService) record(ctx context.Context, entry domain.AuditEntry) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Log(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "audit log failed", "action", entry.Action, "err", err)
	}
}
