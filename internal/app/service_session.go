package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"civicvoice/internal/auth"
	"civicvoice/internal/authpw"
	"civicvoice/internal/config"
	"civicvoice/internal/store"
	"civicvoice/internal/util"

	"go.uber.org/zap"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Anonymous    bool
	ExpiresAt    time.Time
}

func (s *Service) nativeAuth() bool {
	return s.cfg.AuthMode != config.AuthModeFirebase
}

// Authenticate verifies a bearer token and resolves the caller's role. An
// empty token yields an unauthenticated actor and no error.
func (s *Service) Authenticate(ctx context.Context, token string) (Actor, error) {
	if token == "" {
		return s.ActorFor(ctx, auth.Principal{}), nil
	}
	principal, err := s.provider.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
			return Actor{}, domainError(KindAuthenticationRequired, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "Session expired or invalid", nil, err)
		}
		return Actor{}, storageUnavailable(err)
	}
	return s.ActorFor(ctx, principal), nil
}

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	if s.passwords == nil || !s.nativeAuth() {
		return Session{}, authUnavailable()
	}
	user, err := s.passwords.SignUp(ctx, req)
	if err != nil {
		return Session{}, passwordError(err)
	}
	s.log(ctx).Info("account created", zap.String("principal_id", user.ID))
	return s.issueSession(ctx, store.RefreshSession{PrincipalID: user.ID, DisplayName: user.DisplayName})
}

func (s *Service) SignIn(ctx context.Context, req authpw.SignInRequest) (Session, error) {
	if s.passwords == nil || !s.nativeAuth() {
		return Session{}, authUnavailable()
	}
	user, err := s.passwords.SignIn(ctx, req)
	if err != nil {
		return Session{}, passwordError(err)
	}
	return s.issueSession(ctx, store.RefreshSession{PrincipalID: user.ID, DisplayName: user.DisplayName})
}

// GuestSession starts an anonymous principal. Guests file and follow their
// own complaints but are never administrators.
func (s *Service) GuestSession(ctx context.Context) (Session, error) {
	if !s.nativeAuth() {
		return Session{}, authUnavailable()
	}
	return s.issueSession(ctx, store.RefreshSession{
		PrincipalID: util.NewID("guest"),
		DisplayName: "Guest",
		Anonymous:   true,
	})
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued for the same principal.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if !s.nativeAuth() {
		return Session{}, authUnavailable()
	}
	if strings.TrimSpace(refreshToken) == "" {
		return Session{}, fieldInvalid("refreshToken", "Refresh token is required.")
	}
	tokenHash := auth.HashToken(refreshToken)
	existing, err := s.sessions.ConsumeRefreshSession(ctx, tokenHash)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, domainError(KindAuthenticationRequired, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "Refresh token invalid", nil, nil)
	}
	if err != nil {
		return Session{}, storageUnavailable(err)
	}
	return s.issueSession(ctx, existing)
}

func (s *Service) issueSession(ctx context.Context, principal store.RefreshSession) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:       principal.PrincipalID,
		Name:      principal.DisplayName,
		Anonymous: principal.Anonymous,
		JTI:       jti,
		Exp:       expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}

	refreshTTL := s.cfg.RefreshTTL
	if principal.Anonymous {
		refreshTTL = s.cfg.GuestTTL
	}
	refresh := util.NewToken()
	principal.CreatedAt = now.UTC()
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), principal, now.Add(refreshTTL)); err != nil {
		return Session{}, persistenceDenied(err)
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       principal.PrincipalID,
		UserName:     principal.DisplayName,
		Anonymous:    principal.Anonymous,
		ExpiresAt:    expiresAt,
	}, nil
}

// Logout always succeeds from the caller's point of view; revocation
// failures are logged.
func (s *Service) Logout(ctx context.Context, actor Actor, refreshToken string) {
	logger := s.log(ctx)
	if s.nativeAuth() {
		if jti := actor.Principal.TokenID; jti != "" {
			if err := s.store.RevokeAccessToken(ctx, jti, actor.Principal.ExpiresAt); err != nil {
				logger.Warn("revoke access token failed", zap.String("principal_id", actor.ID()), zap.Error(err))
			}
		}
		if refreshToken != "" {
			if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
				logger.Warn("revoke refresh token failed", zap.String("principal_id", actor.ID()), zap.Error(err))
			}
		}
		return
	}
	if s.accounts != nil && actor.Authenticated() && !actor.Principal.Anonymous {
		if err := s.accounts.RevokeSessions(ctx, actor.ID()); err != nil {
			logger.Warn("revoke hosted sessions failed", zap.String("principal_id", actor.ID()), zap.Error(err))
		}
	}
}

// RequestPasswordReset never reveals whether an account exists. The returned
// token is non-empty only in development when no mail server is configured.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fieldInvalid("email", "Please enter a valid email address.")
	}
	logger := s.log(ctx)

	var (
		resetURL string
		name     string
		devToken string
	)
	if s.nativeAuth() {
		if s.passwords == nil {
			return "", authUnavailable()
		}
		token, user, err := s.passwords.RequestPasswordReset(ctx, email)
		if err != nil {
			logger.Error("password reset request failed", zap.Error(err))
			return "", nil
		}
		if token == "" {
			return "", nil
		}
		resetURL = strings.TrimRight(s.cfg.PublicURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
		name = user.DisplayName
		devToken = token
	} else {
		if s.accounts == nil {
			return "", authUnavailable()
		}
		link, err := s.accounts.PasswordResetLink(ctx, email)
		if errors.Is(err, auth.ErrUnknownAccount) {
			return "", nil
		}
		if err != nil {
			logger.Error("hosted password reset link failed", zap.Error(err))
			return "", nil
		}
		resetURL = link
	}

	if s.mailer == nil || !s.mailer.IsConfigured() {
		logger.Warn("password reset email not sent: smtp not configured")
		if s.cfg.Development() {
			return devToken, nil
		}
		return "", nil
	}
	if err := s.mailer.SendPasswordResetEmail(email, name, resetURL); err != nil {
		logger.Error("send password reset email failed", zap.Error(err))
	}
	return "", nil
}

func (s *Service) ResetPassword(ctx context.Context, req authpw.ResetPasswordRequest) error {
	if s.passwords == nil || !s.nativeAuth() {
		return authUnavailable()
	}
	if err := s.passwords.ResetPassword(ctx, req); err != nil {
		return passwordError(err)
	}
	return nil
}

func passwordError(err error) error {
	switch {
	case errors.Is(err, authpw.ErrMissingFields):
		return fieldInvalid("request", "Required fields are missing.")
	case errors.Is(err, authpw.ErrInvalidEmail):
		return fieldInvalid("email", "Please enter a valid email address.")
	case errors.Is(err, authpw.ErrWeakPassword):
		return fieldInvalid("password", "Password must be at least 8 characters.")
	case errors.Is(err, authpw.ErrEmailTaken):
		return domainError(KindConflict, http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil, nil)
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return domainError(KindAuthenticationRequired, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil, nil)
	case errors.Is(err, authpw.ErrInvalidResetToken):
		return fieldInvalid("token", "This reset link is invalid or has expired.")
	default:
		return persistenceDenied(err)
	}
}
