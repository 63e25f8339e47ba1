package reminder

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"formsnap/api/internal/email"
	"formsnap/api/internal/store"
)

type fakeStore struct {
	listDueBetweenFn   func(context.Context, time.Time, time.Time) ([]store.DueApplication, error)
	listWithDeadlineFn func(context.Context, string, int) ([]store.Application, error)
	getUserByIDFn      func(context.Context, string) (store.User, error)
}

func (f *fakeStore) ListDueBetween(ctx context.Context, from, to time.Time) ([]store.DueApplication, error) {
	if f.listDueBetweenFn != nil {
		return f.listDueBetweenFn(ctx, from, to)
	}
	return nil, nil
}

func (f *fakeStore) ListWithDeadline(ctx context.Context, ownerID string, limit int) ([]store.Application, error) {
	if f.listWithDeadlineFn != nil {
		return f.listWithDeadlineFn(ctx, ownerID, limit)
	}
	return nil, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, id)
	}
	return store.User{}, sql.ErrNoRows
}

type sentMail struct {
	to   string
	name string
	apps []email.ReminderApplication
}

type fakeMailer struct {
	configured bool
	failFor    map[string]error // keyed by recipient address
	sent       []sentMail
}

func (f *fakeMailer) IsConfigured() bool { return f.configured }

func (f *fakeMailer) SendDeadlineReminder(to, name string, apps []email.ReminderApplication) error {
	if err, ok := f.failFor[to]; ok {
		return err
	}
	f.sent = append(f.sent, sentMail{to: to, name: name, apps: apps})
	return nil
}

func fixedNow() time.Time {
	return time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
}

func dueApp(ownerID, ownerEmail, title string, deadline time.Time) store.DueApplication {
	return store.DueApplication{
		Application: store.Application{
			ID:        "app_" + title,
			OwnerID:   ownerID,
			FormTitle: title,
			FormURL:   "https://example.com/" + title,
			Category:  store.CategoryPlacement,
			Status:    "Applied",
			Deadline:  &deadline,
		},
		OwnerName:  "Owner " + ownerID,
		OwnerEmail: ownerEmail,
	}
}

func TestWindowBounds(t *testing.T) {
	svc := NewWithClock(&fakeStore{}, &fakeMailer{configured: true}, fixedNow)

	from, to := svc.Window()

	wantFrom := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !from.Equal(wantFrom) {
		t.Errorf("from = %v, want start of tomorrow %v", from, wantFrom)
	}
	if to.Year() != 2024 || to.Month() != 1 || to.Day() != 4 {
		t.Errorf("to = %v, want end of Jan 4", to)
	}
	if to.Hour() != 23 || to.Minute() != 59 || to.Second() != 59 {
		t.Errorf("to = %v, want end-of-day boundary", to)
	}
}

func TestCheckAndSendGroupsByOwner(t *testing.T) {
	deadline := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	fs := &fakeStore{
		listDueBetweenFn: func(context.Context, time.Time, time.Time) ([]store.DueApplication, error) {
			return []store.DueApplication{
				dueApp("u_1", "one@example.com", "alpha", deadline),
				dueApp("u_1", "one@example.com", "beta", deadline),
				dueApp("u_2", "two@example.com", "gamma", deadline),
			}, nil
		},
	}
	mailer := &fakeMailer{configured: true}
	svc := NewWithClock(fs, mailer, fixedNow)

	results, err := svc.CheckAndSend(context.Background())
	if err != nil {
		t.Fatalf("CheckAndSend failed: %v", err)
	}

	if len(mailer.sent) != 2 {
		t.Fatalf("expected one email per owner, got %d", len(mailer.sent))
	}
	if len(mailer.sent[0].apps) != 2 {
		t.Errorf("first owner should receive 2 applications in one email, got %d", len(mailer.sent[0].apps))
	}
	if len(results) != 2 || !results[0].Success || !results[1].Success {
		t.Errorf("unexpected results: %+v", results)
	}
	if results[0].Count != 2 || results[1].Count != 1 {
		t.Errorf("unexpected counts: %+v", results)
	}
}

func TestCheckAndSendIsolatesFailures(t *testing.T) {
	deadline := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	fs := &fakeStore{
		listDueBetweenFn: func(context.Context, time.Time, time.Time) ([]store.DueApplication, error) {
			return []store.DueApplication{
				dueApp("u_1", "one@example.com", "alpha", deadline),
				dueApp("u_2", "two@example.com", "beta", deadline),
				dueApp("u_3", "three@example.com", "gamma", deadline),
			}, nil
		},
	}
	mailer := &fakeMailer{
		configured: true,
		failFor:    map[string]error{"two@example.com": errors.New("smtp: connection refused")},
	}
	svc := NewWithClock(fs, mailer, fixedNow)

	results, err := svc.CheckAndSend(context.Background())
	if err != nil {
		t.Fatalf("CheckAndSend failed: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Success || results[1].Success || !results[2].Success {
		t.Errorf("middle owner should fail, others succeed: %+v", results)
	}
	if results[1].Error == "" {
		t.Error("failed result should carry the error message")
	}
	if len(mailer.sent) != 2 {
		t.Errorf("other owners should still be emailed, got %d sends", len(mailer.sent))
	}
}

func TestCheckAndSendNotConfigured(t *testing.T) {
	svc := NewWithClock(&fakeStore{}, &fakeMailer{configured: false}, fixedNow)
	if _, err := svc.CheckAndSend(context.Background()); err == nil {
		t.Error("expected error when mailer is not configured")
	}
}

func TestCheckAndSendEmptyWindow(t *testing.T) {
	mailer := &fakeMailer{configured: true}
	svc := NewWithClock(&fakeStore{}, mailer, fixedNow)

	results, err := svc.CheckAndSend(context.Background())
	if err != nil {
		t.Fatalf("CheckAndSend failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %+v", results)
	}
	if len(mailer.sent) != 0 {
		t.Error("nothing should be sent for an empty window")
	}
}

func TestSendTestUsesSampleWhenNoDeadlines(t *testing.T) {
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, id string) (store.User, error) {
			return store.User{ID: id, Name: "Asha", Email: "asha@example.com"}, nil
		},
	}
	mailer := &fakeMailer{configured: true}
	svc := NewWithClock(fs, mailer, fixedNow)

	if err := svc.SendTest(context.Background(), "u_1"); err != nil {
		t.Fatalf("SendTest failed: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(mailer.sent))
	}
	if len(mailer.sent[0].apps) != 1 || mailer.sent[0].apps[0].Company != "Sample Company" {
		t.Errorf("expected sample application, got %+v", mailer.sent[0].apps)
	}
}

func TestSendTestUnknownUser(t *testing.T) {
	svc := NewWithClock(&fakeStore{}, &fakeMailer{configured: true}, fixedNow)
	if err := svc.SendTest(context.Background(), "ghost"); err == nil {
		t.Error("expected error for unknown user")
	}
}
