package complaint

import (
	"math"
	"sort"
	"strings"
)

type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// MaxPage keeps (Page-1)*PageSize inside int for any page size.
	MaxPage = math.MaxInt / MaxPageSize
)

// Query describes a listing request. An empty Status matches every status.
type Query struct {
	Text     string
	Status   Status
	Sort     SortOrder
	Page     int
	PageSize int
}

func (q Query) Normalize() Query {
	q.Text = strings.TrimSpace(q.Text)
	if q.Sort != SortOldest {
		q.Sort = SortNewest
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

type Page struct {
	Items      []Complaint `json:"items"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// Matches reports whether text occurs, ignoring case, in the title,
// description, id, category or submitter name.
func Matches(c Complaint, text string) bool {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return true
	}
	for _, haystack := range []string{c.Title, c.Description, c.ID, string(c.Category), c.ContactName} {
		if strings.Contains(strings.ToLower(haystack), needle) {
			return true
		}
	}
	return false
}

// Apply restricts items to scope first and only then filters, sorts and pages.
func Apply(scope Scope, items []Complaint, q Query) Page {
	q = q.Normalize()

	visible := make([]Complaint, 0, len(items))
	for _, item := range items {
		if !scope.Contains(item) {
			continue
		}
		if q.Status != "" && item.Status != q.Status {
			continue
		}
		if !Matches(item, q.Text) {
			continue
		}
		visible = append(visible, item)
	}

	sort.SliceStable(visible, func(i, j int) bool {
		if q.Sort == SortOldest {
			return visible[i].CreatedAt.Before(visible[j].CreatedAt)
		}
		return visible[i].CreatedAt.After(visible[j].CreatedAt)
	})

	total := len(visible)
	start := (q.Page - 1) * q.PageSize
	if start > total {
		start = total
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}
	return Page{
		Items:      visible[start:end],
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: (total + q.PageSize - 1) / q.PageSize,
	}
}
