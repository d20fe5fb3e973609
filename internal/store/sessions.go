package store

import (
	"context"
	"fmt"
	"time"
)

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash string, session RefreshSession, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, principal_id, display_name, anonymous, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_hash) DO UPDATE
			SET principal_id=EXCLUDED.principal_id, display_name=EXCLUDED.display_name,
				anonymous=EXCLUDED.anonymous, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, session.PrincipalID, session.DisplayName, session.Anonymous, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

// ConsumeRefreshSession revokes a live session and returns it in the same
// statement. A second caller with the same hash gets ErrNotFound.
func (s *PostgresStore) ConsumeRefreshSession(ctx context.Context, tokenHash string) (RefreshSession, error) {
	var session RefreshSession
	err := s.db.QueryRowContext(ctx, `
		UPDATE refresh_sessions
		SET revoked_at = NOW()
		WHERE token_hash = $1
			AND revoked_at IS NULL
			AND expires_at > NOW()
		RETURNING principal_id, display_name, anonymous
	`, tokenHash).Scan(&session.PrincipalID, &session.DisplayName, &session.Anonymous)
	if err != nil {
		return RefreshSession{}, notFound(err)
	}
	return session, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}
