package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

var ErrUnknownAccount = errors.New("unknown account")

// FirebaseProvider verifies Firebase ID tokens and exposes the account
// operations the portal needs from Firebase Authentication.
type FirebaseProvider struct {
	client *firebaseauth.Client
}

func NewFirebaseProvider(ctx context.Context, projectID, credentialsFile string) (*FirebaseProvider, error) {
	if strings.TrimSpace(credentialsFile) == "" {
		return nil, errors.New("firebase credentials file is required")
	}
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, cfg, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return &FirebaseProvider{client: client}, nil
}

func (p *FirebaseProvider) Verify(ctx context.Context, token string) (Principal, error) {
	verified, err := p.client.VerifyIDToken(ctx, token)
	if err != nil {
		return Principal{}, verifyError(err, firebaseauth.IsIDTokenExpired, isTokenRejected)
	}
	return principalFromFirebase(verified), nil
}

func isTokenRejected(err error) bool {
	return firebaseauth.IsIDTokenInvalid(err) || firebaseauth.IsIDTokenRevoked(err)
}

// verifyError maps rejected tokens onto ErrExpiredToken and ErrInvalidToken.
// Anything else, such as a failed certificate fetch, is returned as is.
func verifyError(err error, expired, rejected func(error) bool) error {
	switch {
	case expired(err):
		return fmt.Errorf("%w: %v", ErrExpiredToken, err)
	case rejected(err):
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	default:
		return fmt.Errorf("verify id token: %w", err)
	}
}

// RevokeSessions invalidates every refresh token Firebase holds for uid.
func (p *FirebaseProvider) RevokeSessions(ctx context.Context, uid string) error {
	return p.client.RevokeRefreshTokens(ctx, uid)
}

func (p *FirebaseProvider) PasswordResetLink(ctx context.Context, email string) (string, error) {
	link, err := p.client.PasswordResetLink(ctx, email)
	if err != nil {
		if firebaseauth.IsUserNotFound(err) {
			return "", ErrUnknownAccount
		}
		return "", fmt.Errorf("generate reset link: %w", err)
	}
	return link, nil
}

func principalFromFirebase(token *firebaseauth.Token) Principal {
	principal := Principal{
		ID:        token.UID,
		Anonymous: token.Firebase.SignInProvider == "anonymous",
		ExpiresAt: time.Unix(token.Expires, 0),
	}
	if name, ok := token.Claims["name"].(string); ok {
		principal.Name = name
	}
	if email, ok := token.Claims["email"].(string); ok {
		principal.Email = email
	}
	if principal.Name == "" {
		principal.Name = principal.Email
	}
	if principal.Name == "" && principal.Anonymous {
		principal.Name = "Guest"
	}
	return principal
}
