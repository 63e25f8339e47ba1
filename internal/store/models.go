package store

import "time"

// Category selects which status vocabulary applies to a record.
const (
	CategoryPlacement = "Placement"
	CategoryForm      = "Form"
)

// Status vocabularies per category. The first entry of each is the default
// assigned when a record is created (or re-categorized) without a status.
var (
	PlacementStatuses = []string{"Applied", "Test", "Interview", "Shortlisted", "Offer", "Rejected"}
	FormStatuses      = []string{"Submitted", "To Do", "In Progress", "Done"}
)

// TerminalStatuses never receive deadline reminders. These are Placement
// values but the reminder query applies them to every category, so Form
// records are effectively never excluded by status. Inherited behavior.
var TerminalStatuses = []string{"Offer", "Rejected"}

// AllowedTags is the fixed tag vocabulary.
var AllowedTags = []string{"Dream", "Backup", "Off-campus", "PPO", "Internship"}

// StatusesFor returns the status vocabulary for a category. Records lacking
// an explicit category are treated as Placement.
func StatusesFor(category string) []string {
	if category == CategoryForm {
		return FormStatuses
	}
	return PlacementStatuses
}

// DefaultStatusFor returns the initial status for a category.
func DefaultStatusFor(category string) string {
	return StatusesFor(category)[0]
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Application is the tracked record: a placement application or a general
// form capture. OwnerID is set at creation and never changes; every store
// operation is scoped by it.
type Application struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"userId"`
	FormTitle string     `json:"formTitle"`
	FormURL   string     `json:"formUrl"`
	Company   string     `json:"company"`
	Category  string     `json:"category"`
	Status    string     `json:"status"`
	Deadline  *time.Time `json:"deadline"`
	Notes     string     `json:"notes"`
	Tags      []string   `json:"tags"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// ListFilter narrows an owner's application listing.
type ListFilter struct {
	Status string // exact status match, empty = all
	Search string // case-insensitive substring over formTitle OR company
	Sort   string // allowlisted sort key, e.g. "-createdAt"
}

// Analytics is the on-demand aggregation over one owner's records.
// Zero-count buckets are omitted; an empty record set yields empty maps.
type Analytics struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"byStatus"`
	ByCategory map[string]int `json:"byCategory"`
	ByTag      map[string]int `json:"byTag"`
}

// DueApplication joins an application in the reminder window with its
// owner's contact info.
type DueApplication struct {
	Application
	OwnerName  string
	OwnerEmail string
}

type PasswordReset struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	UsedAt    *time.Time
}
