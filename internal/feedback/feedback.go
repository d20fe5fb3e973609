// Package feedback holds the star-rated feedback a citizen leaves on a
// complaint, annotated with the sentiment of its comments.
package feedback

import (
	"strings"
	"time"

	"civicvoice/internal/complaint"
	"civicvoice/internal/sentiment"
	"civicvoice/internal/validation"
)

// Feedback is immutable once written. The complaint title and contact
// details are copied from the complaint at submission time.
type Feedback struct {
	ID                  string          `json:"id"`
	ComplaintID         string          `json:"complaintId"`
	ComplaintTitle      string          `json:"complaintTitle"`
	OwnerID             string          `json:"citizenId"`
	ContactName         string          `json:"name"`
	ContactEmail        string          `json:"email"`
	Rating              int             `json:"rating"`
	Comments            string          `json:"comments"`
	Suggestions         string          `json:"suggestions,omitempty"`
	Sentiment           sentiment.Label `json:"sentiment"`
	SentimentConfidence float64         `json:"sentimentConfidence"`
	SentimentReason     string          `json:"sentimentReason,omitempty"`
	SentimentModel      string          `json:"sentimentModel,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
}

type Input struct {
	Rating      int    `json:"rating"`
	Comments    string `json:"comments"`
	Suggestions string `json:"suggestions"`
}

func (in Input) Validate() error {
	errs := validation.Errors{}
	if in.Rating < 1 || in.Rating > 5 {
		errs.Add("rating", "Please select a rating.")
	}
	errs.MinLength("comments", in.Comments, 10, "Comments must be at least 10 characters long.")
	errs.MaxLength("comments", in.Comments, 5000, "Comments must be at most 5000 characters.")
	errs.MaxLength("suggestions", in.Suggestions, 1000, "Suggestions must be at most 1000 characters.")
	return errs.Err()
}

// New assembles a feedback record for c from validated input and a classification.
func New(id string, c complaint.Complaint, ownerID string, in Input, result sentiment.Result, model string, now time.Time) Feedback {
	return Feedback{
		ID:                  id,
		ComplaintID:         c.ID,
		ComplaintTitle:      c.Title,
		OwnerID:             ownerID,
		ContactName:         c.ContactName,
		ContactEmail:        c.ContactEmail,
		Rating:              in.Rating,
		Comments:            strings.TrimSpace(in.Comments),
		Suggestions:         strings.TrimSpace(in.Suggestions),
		Sentiment:           result.Sentiment,
		SentimentConfidence: result.Confidence,
		SentimentReason:     result.Reason,
		SentimentModel:      model,
		CreatedAt:           now.UTC(),
	}
}

type Page struct {
	Items      []Feedback `json:"items"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	TotalPages int        `json:"totalPages"`
}
