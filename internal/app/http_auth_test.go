package app

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"civicvoice/internal/auth"
	"civicvoice/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignUpSignInAndMe(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()

	rec, body := doJSON(t, h, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email": "Asha@Example.com", "password": "correct horse", "displayName": "Asha",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["refreshToken"])
	assert.Equal(t, "citizen", body["role"])
	assert.Equal(t, false, body["anonymous"])
	userID := body["userId"].(string)

	rec, body = doJSON(t, h, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email": "asha@example.com", "password": "another one", "displayName": "Asha again",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EMAIL_EXISTS", body["code"])

	rec, body = doJSON(t, h, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email": "short@example.com", "password": "short", "displayName": "Short",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body["details"], "password")

	rec, body = doJSON(t, h, http.MethodPost, "/api/auth/signin", "", map[string]any{
		"email": "asha@example.com", "password": "wrong password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", body["code"])

	rec, body = doJSON(t, h, http.MethodPost, "/api/auth/signin", "", map[string]any{
		"email": "asha@example.com", "password": "correct horse",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	token := body["token"].(string)

	env.store.admins[userID] = true
	rec, body = doJSON(t, h, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, body["userId"])
	assert.Equal(t, "Asha", body["userName"])
	assert.Equal(t, "administrator", body["role"], "role is looked up on every request")
}

func TestSessionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()

	rec, body := doJSON(t, h, http.MethodGet, "/api/session", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["authenticated"])
	assert.Nil(t, body["userName"])

	rec, body = doJSON(t, h, http.MethodGet, "/api/session", "garbage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["authenticated"])

	rec, body = doJSON(t, h, http.MethodGet, "/api/session", env.token(t, "alice"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "alice", body["userId"])
	assert.Equal(t, "citizen", body["role"])
}

func TestGuestSessionIsNeverAdministrator(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()

	rec, body := doJSON(t, h, http.MethodPost, "/api/session/guest", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["anonymous"])
	assert.Equal(t, "Guest", body["userName"])
	guestID := body["userId"].(string)
	token := body["token"].(string)

	env.store.admins[guestID] = true
	rec, body = doJSON(t, h, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "citizen", body["role"])

	rec, _ = doJSON(t, h, http.MethodPost, "/api/complaints", token, validInput())
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRefreshRotatesTokens(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()

	_, body := doJSON(t, h, http.MethodPost, "/api/session/guest", "", nil)
	original := body["refreshToken"].(string)

	rec, body := doJSON(t, h, http.MethodPost, "/api/session/refresh", "", map[string]any{"refreshToken": original})
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := body["refreshToken"].(string)
	assert.NotEqual(t, original, rotated)
	assert.Equal(t, true, body["anonymous"])

	rec, body = doJSON(t, h, http.MethodPost, "/api/session/refresh", "", map[string]any{"refreshToken": original})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "a refresh token is single use")
	assert.Equal(t, "AUTHENTICATION_REQUIRED", body["code"])

	rec, body = doJSON(t, h, http.MethodPost, "/api/session/refresh", "", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body["details"], "refreshToken")
}

func TestLogoutRevokesTokens(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()

	_, body := doJSON(t, h, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email": "leaver@example.com", "password": "long enough", "displayName": "Leaver",
	})
	token := body["token"].(string)
	refresh := body["refreshToken"].(string)

	rec, body := doJSON(t, h, http.MethodPost, "/api/session/logout", token, map[string]any{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])

	rec, _ = doJSON(t, h, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, h, http.MethodPost, "/api/session/refresh", "", map[string]any{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, h, http.MethodPost, "/api/session/logout", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "logout without a session still succeeds")
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()

	_, _ = doJSON(t, h, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email": "forgetful@example.com", "password": "first password", "displayName": "Forgetful",
	})

	rec, body := doJSON(t, h, http.MethodPost, "/api/auth/reset-password/request", "", map[string]any{"email": "nobody@example.com"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotContains(t, body, "devResetToken")

	rec, body = doJSON(t, h, http.MethodPost, "/api/auth/reset-password/request", "", map[string]any{"email": "forgetful@example.com"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	token, ok := body["devResetToken"].(string)
	require.True(t, ok, "development without smtp returns the token")

	rec, _ = doJSON(t, h, http.MethodPost, "/api/auth/reset-password", "", map[string]any{"token": token, "newPassword": "second password"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = doJSON(t, h, http.MethodPost, "/api/auth/reset-password", "", map[string]any{"token": token, "newPassword": "third password"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body["details"], "token")

	rec, _ = doJSON(t, h, http.MethodPost, "/api/auth/signin", "", map[string]any{"email": "forgetful@example.com", "password": "second password"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPasswordResetSendsEmailWhenConfigured(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.configured = true
	h := env.handler()

	_, _ = doJSON(t, h, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email": "mailme@example.com", "password": "first password", "displayName": "Mail Me",
	})
	rec, body := doJSON(t, h, http.MethodPost, "/api/auth/reset-password/request", "", map[string]any{"email": "mailme@example.com"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotContains(t, body, "devResetToken")
	require.Len(t, env.mailer.sent, 1)
	assert.Contains(t, env.mailer.sent[0], "http://localhost:3000/reset-password?token=")
}

type fakeProvider map[string]auth.Principal

func (f fakeProvider) Verify(_ context.Context, token string) (auth.Principal, error) {
	principal, ok := f[token]
	if !ok {
		return auth.Principal{}, auth.ErrInvalidToken
	}
	return principal, nil
}

func TestHostedAuthMode(t *testing.T) {
	accounts := &fakeAccounts{link: "https://civic.firebaseapp.com/__/auth/action?oobCode=abc"}
	env := newTestEnv(t, func(cfg *config.Config, deps *Deps) {
		cfg.AuthMode = config.AuthModeFirebase
		deps.Provider = fakeProvider{"id-token": {ID: "fb-uid", Name: "Hosted User", Email: "hosted@example.com"}}
		deps.Accounts = accounts
	})
	env.mailer.configured = true
	h := env.handler()

	rec, body := doJSON(t, h, http.MethodPost, "/api/auth/signin", "", map[string]any{"email": "hosted@example.com", "password": "whatever1"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "AUTH_UNAVAILABLE", body["code"])

	rec, _ = doJSON(t, h, http.MethodPost, "/api/session/guest", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, body = doJSON(t, h, http.MethodGet, "/api/me", "id-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hosted@example.com", body["email"])

	rec, _ = doJSON(t, h, http.MethodPost, "/api/auth/reset-password/request", "", map[string]any{"email": "hosted@example.com"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, env.mailer.sent, 1)
	assert.Contains(t, env.mailer.sent[0], "oobCode=abc")

	rec, _ = doJSON(t, h, http.MethodPost, "/api/session/logout", "id-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"fb-uid"}, accounts.revoked)
}

type unreachableProvider struct{}

func (unreachableProvider) Verify(context.Context, string) (auth.Principal, error) {
	return auth.Principal{}, errors.New("verify id token: fetch certificates: connection refused")
}

func TestTokenVerifierOutageIsUnavailable(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config, deps *Deps) {
		cfg.AuthMode = config.AuthModeFirebase
		deps.Provider = unreachableProvider{}
	})

	rec, body := doJSON(t, env.handler(), http.MethodGet, "/api/me", "id-token", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "STORAGE_UNAVAILABLE", body["code"])
}
