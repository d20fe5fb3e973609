// Package complaint holds the complaint record, its field rules, its status
// lifecycle and the visibility policy that decides who may see or change it.
package complaint

import (
	"regexp"
	"strings"
	"time"

	"civicvoice/internal/validation"
)

type Category string

const (
	CategoryRoads           Category = "Roads"
	CategoryUtilities       Category = "Utilities"
	CategoryParks           Category = "Parks"
	CategoryPublicTransport Category = "Public Transport"
	CategoryOther           Category = "Other"
)

var Categories = []Category{CategoryRoads, CategoryUtilities, CategoryParks, CategoryPublicTransport, CategoryOther}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Complaint is a citizen-filed record. Only Status (and Revision with it)
// changes after creation.
type Complaint struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"citizenId"`
	Title          string    `json:"title"`
	Category       Category  `json:"category"`
	Description    string    `json:"description"`
	Location       string    `json:"location"`
	ContactName    string    `json:"name"`
	ContactEmail   string    `json:"email"`
	ContactPhone   string    `json:"phone"`
	Priority       Priority  `json:"priority"`
	Status         Status    `json:"status"`
	AttachmentKey  string    `json:"-"`
	AttachmentType string    `json:"attachmentType,omitempty"`
	Revision       int64     `json:"revision"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (c Complaint) HasAttachment() bool {
	return c.AttachmentKey != ""
}

// Input is the citizen-supplied part of a complaint.
type Input struct {
	Title       string `json:"title"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Priority    string `json:"priority"`
}

var phonePattern = regexp.MustCompile(`^\d{10}$`)

// Validate returns validation.Errors keyed by input field, or nil.
func (in Input) Validate() error {
	errs := validation.Errors{}
	errs.MinLength("title", in.Title, 5, "Title must be at least 5 characters.")
	errs.MaxLength("title", in.Title, 200, "Title must be at most 200 characters.")
	if _, ok := ParseCategory(in.Category); !ok {
		errs.Add("category", "Please select a category.")
	}
	errs.MinLength("description", in.Description, 10, "Description must be at least 10 characters.")
	errs.MaxLength("description", in.Description, 5000, "Description must be at most 5000 characters.")
	errs.MinLength("location", in.Location, 5, "Location must be at least 5 characters.")
	errs.MaxLength("location", in.Location, 300, "Location must be at most 300 characters.")
	errs.MinLength("name", in.Name, 2, "Please enter your name.")
	errs.Email("email", in.Email, "Please enter a valid email address.")
	errs.Match("phone", strings.TrimSpace(in.Phone), phonePattern, "Phone number must be 10 digits.")
	if _, ok := ParsePriority(in.Priority); !ok {
		errs.Add("priority", "Please select a priority level.")
	}
	return errs.Err()
}

// New builds a Pending complaint from validated input.
func New(id, ownerID string, in Input, now time.Time) Complaint {
	category, _ := ParseCategory(in.Category)
	priority, _ := ParsePriority(in.Priority)
	return Complaint{
		ID:           id,
		OwnerID:      ownerID,
		Title:        strings.TrimSpace(in.Title),
		Category:     category,
		Description:  strings.TrimSpace(in.Description),
		Location:     strings.TrimSpace(in.Location),
		ContactName:  strings.TrimSpace(in.Name),
		ContactEmail: strings.TrimSpace(in.Email),
		ContactPhone: strings.TrimSpace(in.Phone),
		Priority:     priority,
		Status:       StatusPending,
		CreatedAt:    now.UTC(),
	}
}

func ParseCategory(value string) (Category, bool) {
	value = strings.TrimSpace(value)
	for _, category := range Categories {
		if strings.EqualFold(value, string(category)) {
			return category, true
		}
	}
	return "", false
}

func ParsePriority(value string) (Priority, bool) {
	value = strings.TrimSpace(value)
	for _, priority := range Priorities {
		if strings.EqualFold(value, string(priority)) {
			return priority, true
		}
	}
	return "", false
}
