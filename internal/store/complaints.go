package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"civicvoice/internal/complaint"
)

const complaintColumns = `id, owner_id, title, category, description, location,
	contact_name, contact_email, contact_phone, priority, status,
	attachment_key, attachment_type, revision, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComplaint(row rowScanner) (complaint.Complaint, error) {
	var c complaint.Complaint
	err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &c.Category, &c.Description, &c.Location,
		&c.ContactName, &c.ContactEmail, &c.ContactPhone, &c.Priority, &c.Status,
		&c.AttachmentKey, &c.AttachmentType, &c.Revision, &c.CreatedAt)
	return c, err
}

func (s *PostgresStore) InsertComplaint(ctx context.Context, c complaint.Complaint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO complaints (`+complaintColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, c.ID, c.OwnerID, c.Title, string(c.Category), c.Description, c.Location,
		c.ContactName, c.ContactEmail, c.ContactPhone, string(c.Priority), string(c.Status),
		c.AttachmentKey, c.AttachmentType, c.Revision, c.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert complaint: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComplaint(ctx context.Context, id string) (complaint.Complaint, error) {
	c, err := scanComplaint(s.db.QueryRowContext(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id=$1`, id))
	if err != nil {
		return complaint.Complaint{}, notFound(err)
	}
	return c, nil
}

// UpdateComplaintStatus is a compare-and-swap on revision. ok is false when
// the row is missing or its revision moved on.
func (s *PostgresStore) UpdateComplaintStatus(ctx context.Context, id string, status complaint.Status, expectedRevision int64) (complaint.Complaint, bool, error) {
	c, err := scanComplaint(s.db.QueryRowContext(ctx, `
		UPDATE complaints SET status=$2, revision=revision+1
		WHERE id=$1 AND revision=$3
		RETURNING `+complaintColumns, id, string(status), expectedRevision))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return complaint.Complaint{}, false, nil
		}
		return complaint.Complaint{}, false, fmt.Errorf("update complaint status: %w", err)
	}
	return c, true, nil
}

func (s *PostgresStore) DeleteComplaint(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM complaints WHERE id=$1`, id)
	if err != nil {
		return false, fmt.Errorf("delete complaint: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete complaint: %w", err)
	}
	return rows > 0, nil
}

// ListComplaints applies only equality filters and ordering; text search
// happens in the caller over the returned, already scoped rows.
func (s *PostgresStore) ListComplaints(ctx context.Context, filter ComplaintFilter) ([]complaint.Complaint, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + complaintColumns + ` FROM complaints`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	if filter.Oldest {
		query += ` ORDER BY created_at ASC, id ASC`
	} else {
		query += ` ORDER BY created_at DESC, id DESC`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	defer rows.Close()

	items := make([]complaint.Complaint, 0)
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
