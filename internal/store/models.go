package store

import "time"

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshSession is what a refresh token resolves back to. Guests and
// Firebase principals have no users row, so the name travels with it.
type RefreshSession struct {
	PrincipalID string    `json:"principal_id"`
	DisplayName string    `json:"display_name"`
	Anonymous   bool      `json:"anonymous"`
	CreatedAt   time.Time `json:"created_at"`
}

type Administrator struct {
	PrincipalID string
	Note        string
	CreatedAt   time.Time
}

type ComplaintFilter struct {
	// OwnerID restricts to one owner; empty means every owner.
	OwnerID string
	Status  string
	Oldest  bool
}

type FeedbackFilter struct {
	OwnerID string
	Limit   int
	Offset  int
}

type Summary struct {
	ComplaintsByStatus  map[string]int `json:"complaintsByStatus"`
	FeedbackBySentiment map[string]int `json:"feedbackBySentiment"`
	FeedbackTotal       int            `json:"feedbackTotal"`
	AverageRating       float64        `json:"averageRating"`
}
