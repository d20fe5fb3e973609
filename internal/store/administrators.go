package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) IsAdministrator(ctx context.Context, principalID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM administrators WHERE principal_id=$1)`, principalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check administrator: %w", err)
	}
	return exists, nil
}

// GrantAdministrator is idempotent; an existing note is replaced.
func (s *PostgresStore) GrantAdministrator(ctx context.Context, principalID, note string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO administrators (principal_id, note)
		VALUES ($1, $2)
		ON CONFLICT (principal_id) DO UPDATE SET note = EXCLUDED.note
	`, principalID, note)
	if err != nil {
		return fmt.Errorf("grant administrator: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAdministrator(ctx context.Context, principalID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM administrators WHERE principal_id=$1`, principalID)
	if err != nil {
		return false, fmt.Errorf("revoke administrator: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke administrator: %w", err)
	}
	return rows > 0, nil
}

func (s *PostgresStore) ListAdministrators(ctx context.Context) ([]Administrator, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT principal_id, note, created_at FROM administrators ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list administrators: %w", err)
	}
	defer rows.Close()

	var admins []Administrator
	for rows.Next() {
		var admin Administrator
		if err := rows.Scan(&admin.PrincipalID, &admin.Note, &admin.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan administrator: %w", err)
		}
		admins = append(admins, admin)
	}
	return admins, rows.Err()
}
