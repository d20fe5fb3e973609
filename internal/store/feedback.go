package store

import (
	"context"
	"fmt"

	"civicvoice/internal/feedback"
)

const feedbackColumns = `id, complaint_id, complaint_title, owner_id, contact_name, contact_email,
	rating, comments, suggestions, sentiment, sentiment_confidence, sentiment_reason,
	sentiment_model, created_at`

func (s *PostgresStore) InsertFeedback(ctx context.Context, fb feedback.Feedback) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (`+feedbackColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, fb.ID, fb.ComplaintID, fb.ComplaintTitle, fb.OwnerID, fb.ContactName, fb.ContactEmail,
		fb.Rating, fb.Comments, fb.Suggestions, string(fb.Sentiment), fb.SentimentConfidence, fb.SentimentReason,
		fb.SentimentModel, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// ListFeedback returns one page, newest first, and the total matching count.
func (s *PostgresStore) ListFeedback(ctx context.Context, filter FeedbackFilter) ([]feedback.Feedback, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM feedback WHERE ($1 = '' OR owner_id = $1)
	`, filter.OwnerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count feedback: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+feedbackColumns+`
		FROM feedback
		WHERE ($1 = '' OR owner_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, filter.OwnerID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	items := make([]feedback.Feedback, 0)
	for rows.Next() {
		var fb feedback.Feedback
		if err := rows.Scan(&fb.ID, &fb.ComplaintID, &fb.ComplaintTitle, &fb.OwnerID, &fb.ContactName, &fb.ContactEmail,
			&fb.Rating, &fb.Comments, &fb.Suggestions, &fb.Sentiment, &fb.SentimentConfidence, &fb.SentimentReason,
			&fb.SentimentModel, &fb.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan feedback: %w", err)
		}
		items = append(items, fb)
	}
	return items, total, rows.Err()
}

func (s *PostgresStore) Summary(ctx context.Context) (Summary, error) {
	summary := Summary{
		ComplaintsByStatus:  map[string]int{},
		FeedbackBySentiment: map[string]int{},
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM complaints GROUP BY status`)
	if err != nil {
		return Summary{}, fmt.Errorf("count complaints: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, fmt.Errorf("scan complaint count: %w", err)
		}
		summary.ComplaintsByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}

	sentimentRows, err := s.db.QueryContext(ctx, `SELECT sentiment, COUNT(*) FROM feedback GROUP BY sentiment`)
	if err != nil {
		return Summary{}, fmt.Errorf("count feedback: %w", err)
	}
	defer sentimentRows.Close()
	for sentimentRows.Next() {
		var label string
		var count int
		if err := sentimentRows.Scan(&label, &count); err != nil {
			return Summary{}, fmt.Errorf("scan feedback count: %w", err)
		}
		summary.FeedbackBySentiment[label] = count
		summary.FeedbackTotal += count
	}
	if err := sentimentRows.Err(); err != nil {
		return Summary{}, err
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(AVG(rating), 0)::float8 FROM feedback`).Scan(&summary.AverageRating); err != nil {
		return Summary{}, fmt.Errorf("average rating: %w", err)
	}
	return summary, nil
}
