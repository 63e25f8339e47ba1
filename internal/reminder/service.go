// Package reminder selects applications with deadlines coming up and sends
// one grouped email per owner.
//
// Two inherited behaviors are kept deliberately: the dispatcher keeps no log
// of what it already sent, so two runs inside the same window email the same
// owners twice; and the terminal-status exclusion uses the Placement values
// (Offer, Rejected) for every category, so Form records are never excluded
// by status.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"formsnap/api/internal/email"
	"formsnap/api/internal/store"
)

// windowDays is how far ahead of tomorrow the reminder window reaches.
const windowDays = 3

// Store is the subset of the record store the dispatcher reads.
type Store interface {
	ListDueBetween(ctx context.Context, from, to time.Time) ([]store.DueApplication, error)
	ListWithDeadline(ctx context.Context, ownerID string, limit int) ([]store.Application, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
}

// Mailer is the external mail collaborator.
type Mailer interface {
	IsConfigured() bool
	SendDeadlineReminder(to, userName string, applications []email.ReminderApplication) error
}

type Service struct {
	store  Store
	mailer Mailer
	now    func() time.Time
}

func New(st Store, mailer Mailer) *Service {
	return &Service{store: st, mailer: mailer, now: time.Now}
}

// NewWithClock injects a clock for tests.
func NewWithClock(st Store, mailer Mailer, now func() time.Time) *Service {
	return &Service{store: st, mailer: mailer, now: now}
}

// Result is the per-owner outcome of one dispatcher run.
type Result struct {
	UserID  string `json:"userId"`
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

// Window is [start of tomorrow, end of the day three days out], date-only
// boundaries in the server's time zone.
func (s *Service) Window() (from, to time.Time) {
	now := s.now()
	year, month, day := now.Date()
	from = time.Date(year, month, day, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	to = time.Date(year, month, day, 23, 59, 59, int(999*time.Millisecond), now.Location()).AddDate(0, 0, windowDays)
	return from, to
}

// CheckAndSend runs the dispatcher for every owner. A failed send is recorded
// against its owner and never aborts the remaining sends; there are no
// retries.
func (s *Service) CheckAndSend(ctx context.Context) ([]Result, error) {
	if !s.mailer.IsConfigured() {
		return nil, errors.New("email not configured")
	}

	from, to := s.Window()
	due, err := s.store.ListDueBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list due applications: %w", err)
	}

	type group struct {
		name  string
		email string
		apps  []email.ReminderApplication
	}
	groups := map[string]*group{}
	var order []string
	for _, app := range due {
		g, ok := groups[app.OwnerID]
		if !ok {
			g = &group{name: app.OwnerName, email: app.OwnerEmail}
			groups[app.OwnerID] = g
			order = append(order, app.OwnerID)
		}
		g.apps = append(g.apps, toReminderApplication(app.Application))
	}

	results := make([]Result, 0, len(order))
	for _, ownerID := range order {
		g := groups[ownerID]
		if err := s.mailer.SendDeadlineReminder(g.email, g.name, g.apps); err != nil {
			results = append(results, Result{UserID: ownerID, Success: false, Count: len(g.apps), Error: err.Error()})
			continue
		}
		results = append(results, Result{UserID: ownerID, Success: true, Count: len(g.apps)})
	}
	return results, nil
}

// SendTest emails a reminder to one user using up to three of their
// deadline-tracked applications, or a sample record when they have none.
func (s *Service) SendTest(ctx context.Context, userID string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("user not found: %w", err)
	}

	apps, err := s.store.ListWithDeadline(ctx, userID, 3)
	if err != nil {
		return fmt.Errorf("list applications: %w", err)
	}

	reminders := make([]email.ReminderApplication, 0, len(apps))
	for _, app := range apps {
		reminders = append(reminders, toReminderApplication(app))
	}
	if len(reminders) == 0 {
		reminders = append(reminders, email.ReminderApplication{
			Company:   "Sample Company",
			FormTitle: "Test Application",
			Deadline:  s.now(),
		})
	}

	return s.mailer.SendDeadlineReminder(user.Email, user.Name, reminders)
}

func toReminderApplication(app store.Application) email.ReminderApplication {
	r := email.ReminderApplication{
		Company:   app.Company,
		FormTitle: app.FormTitle,
	}
	if app.Deadline != nil {
		r.Deadline = *app.Deadline
	}
	return r
}
