package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/mail"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tryon/internal/auth/domain"
	"github.com/smallbiznis/tryon/internal/auth/password"
	"github.com/smallbiznis/tryon/internal/clock"
	"github.com/smallbiznis/tryon/internal/config"
	"github.com/smallbiznis/tryon/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sessionTokenBytes = 32
	minPasswordLength = 8
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{2,31}$`)

type Params struct {
	fx.In

	Log         *zap.Logger
	Cfg         config.Config
	Repo        domain.Repository
	SessionRepo domain.SessionRepository
	GenID       *snowflake.Node
	Clock       clock.Clock
}

type Service struct {
	log         *zap.Logger
	repo        domain.Repository
	sessionRepo domain.SessionRepository
	genID       *snowflake.Node
	clock       clock.Clock
	authCfg     config.AuthConfig
	admins      map[string]struct{}
}

func New(p Params) domain.Service {
	admins := make(map[string]struct{}, len(p.Cfg.Auth.AdminEmails))
	for _, email := range p.Cfg.Auth.AdminEmails {
		admins[email] = struct{}{}
	}
	return &Service{
		log:         p.Log.Named("auth.service"),
		repo:        p.Repo,
		sessionRepo: p.SessionRepo,
		genID:       p.GenID,
		clock:       p.Clock,
		authCfg:     p.Cfg.Auth,
		admins:      admins,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Account, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" {
		username = defaultUsername(email)
	}
	if !usernamePattern.MatchString(username) {
		return nil, domain.ErrInvalidUsername
	}
	if len(req.Password) < minPasswordLength {
		return nil, domain.ErrInvalidPassword
	}

	exists, err := s.repo.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrAccountExists
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	role := domain.RoleOwner
	if _, ok := s.admins[email]; ok {
		role = domain.RoleAdmin
	}

	now := s.clock.Now()
	free := s.authCfg.SignupFreeCredits
	if free < 0 {
		free = 0
	}
	account := &domain.Account{
		ID:             s.genID.Generate(),
		Email:          email,
		Username:       username,
		PasswordHash:   hashed,
		Role:           role,
		InitialCredits: free,
		Credits:        free,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAccountExists
		}
		return nil, err
	}

	s.log.Info("account registered",
		zap.String("account_id", account.ID.String()),
		zap.String("role", role),
		zap.Int64("initial_credits", free),
	)
	return account, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	identifier := strings.ToLower(strings.TrimSpace(req.Identifier))
	if identifier == "" || req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.repo.FindByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !password.Verify(req.Password, account.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	rawToken, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &domain.Session{
		ID:         s.genID.Generate(),
		AccountID:  account.ID,
		TokenHash:  hashToken(rawToken),
		UserAgent:  strings.TrimSpace(req.UserAgent),
		IPAddress:  strings.TrimSpace(req.IPAddress),
		ExpiresAt:  now.Add(s.authCfg.SessionTTL),
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &domain.LoginResult{
		Account:   account,
		RawToken:  rawToken,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrInvalidSession
		}
		return err
	}
	return s.sessionRepo.RevokeSession(ctx, session.ID, s.clock.Now())
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Account, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}

	now := s.clock.Now()
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionRevoked
	}
	if now.After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	account, err := s.repo.FindByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}

	if err := s.sessionRepo.UpdateLastSeen(ctx, session.ID, now); err != nil {
		s.log.Warn("failed to update session last seen", zap.Error(err))
	}
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, id snowflake.ID) (*domain.Account, error) {
	if id == 0 {
		return nil, domain.ErrAccountNotFound
	}
	return s.repo.FindByID(ctx, id)
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func defaultUsername(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return strings.TrimSpace(local)
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
