package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"formsnap/api/internal/auth"
	"formsnap/api/internal/authpw"
	"formsnap/api/internal/company"
	"formsnap/api/internal/config"
	"formsnap/api/internal/deadline"
	"formsnap/api/internal/email"
	"formsnap/api/internal/reminder"
	"formsnap/api/internal/search"
	"formsnap/api/internal/store"
	"formsnap/api/internal/util"
)

const (
	maxFormTitleLen = 200
	maxCompanyLen   = 100
	maxNotesLen     = 2000
)

// Store is the persistence surface the service needs.
type Store interface {
	Ping(ctx context.Context) error
	GetUserByID(ctx context.Context, id string) (store.User, error)

	InsertApplication(ctx context.Context, item store.Application) error
	GetApplication(ctx context.Context, ownerID, id string) (store.Application, error)
	ListApplications(ctx context.Context, ownerID string, filter store.ListFilter) ([]store.Application, error)
	UpdateApplication(ctx context.Context, item store.Application) (store.Application, error)
	DeleteApplication(ctx context.Context, ownerID, id string) error
	ApplicationURLExists(ctx context.Context, ownerID, formURL string) (bool, error)
	AnalyticsCounts(ctx context.Context, ownerID string) (store.Analytics, error)
}

// SessionStore holds refresh sessions. Redis in production, Postgres as the
// fallback when Redis is not reachable at startup.
type SessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg       config.Config
	store     Store
	sessions  SessionStore
	authpw    *authpw.Service
	email     *email.Service
	search    *search.Service
	reminders *reminder.Service
	rules     []company.Rule
	now       func() time.Time
}

func New(cfg config.Config, st Store, sessions SessionStore, authSvc *authpw.Service, mail *email.Service, searchSvc *search.Service, reminders *reminder.Service) *Service {
	return &Service{
		cfg:       cfg,
		store:     st,
		sessions:  sessions,
		authpw:    authSvc,
		email:     mail,
		search:    searchSvc,
		reminders: reminders,
		rules:     company.DefaultRules,
		now:       time.Now,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ── Sessions ──

// Session is the authenticated caller attached to a request.
type Session struct {
	UserID   string
	UserName string
	Email    string
}

// SessionTokens is an issued access/refresh token pair.
type SessionTokens struct {
	Token        string
	RefreshToken string
	ExpiresAt    time.Time
}

func (s *Service) CreateSession(ctx context.Context, user store.User) (SessionTokens, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.Name,
		Email: user.Email,
		JTI:   util.NewID("jti"),
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return SessionTokens{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return SessionTokens{}, err
	}

	return SessionTokens{Token: token, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}

func (s *Service) SessionFromToken(_ context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: claims.Sub, UserName: claims.Name, Email: claims.Email}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (store.User, SessionTokens, error) {
	tokenHash := auth.HashToken(refreshToken)
	found, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return store.User{}, SessionTokens{}, err
	}
	// The Redis store only keeps the user ID; fill in name and email from
	// Postgres so the new access token carries full claims.
	user, err := s.store.GetUserByID(ctx, found.ID)
	if err != nil {
		return store.User{}, SessionTokens{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return store.User{}, SessionTokens{}, err
	}
	tokens, err := s.CreateSession(ctx, user)
	if err != nil {
		return store.User{}, SessionTokens{}, err
	}
	return user, tokens, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

// ── Accounts ──

func (s *Service) Register(ctx context.Context, name, email, password string) (store.User, SessionTokens, error) {
	user, err := s.authpw.Register(ctx, authpw.RegisterRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return store.User{}, SessionTokens{}, err
	}
	tokens, err := s.CreateSession(ctx, user)
	if err != nil {
		return store.User{}, SessionTokens{}, err
	}
	return user, tokens, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (store.User, SessionTokens, error) {
	user, err := s.authpw.Login(ctx, email, password)
	if err != nil {
		return store.User{}, SessionTokens{}, err
	}
	tokens, err := s.CreateSession(ctx, user)
	if err != nil {
		return store.User{}, SessionTokens{}, err
	}
	return user, tokens, nil
}

func (s *Service) CurrentUser(ctx context.Context, session Session) (store.User, error) {
	return s.store.GetUserByID(ctx, session.UserID)
}

// RequestPasswordReset never reveals whether the email exists. The returned
// token is only non-empty when SMTP is not configured, as a dev bypass.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) (string, error) {
	user, token, err := s.authpw.RequestPasswordReset(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, authpw.ErrUserNotFound) {
			return "", nil
		}
		return "", err
	}
	if !s.email.IsConfigured() {
		return token, nil
	}
	resetURL := strings.TrimRight(s.cfg.ClientURL, "/") + "/reset-password?token=" + token
	if err := s.email.SendPasswordResetEmail(user.Email, user.Name, resetURL); err != nil {
		log.Printf("password reset email to %s failed: %v", user.Email, err)
	}
	return "", nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.authpw.ResetPassword(ctx, token, newPassword)
}

// ── Applications ──

// ApplicationView is an application plus its computed deadline classification.
type ApplicationView struct {
	store.Application
	DeadlineStatus string `json:"deadlineStatus,omitempty"`
	DeadlineLabel  string `json:"deadlineLabel,omitempty"`
}

func (s *Service) view(app store.Application) ApplicationView {
	info := deadline.Classify(app.Deadline, s.now())
	return ApplicationView{
		Application:    app,
		DeadlineStatus: string(info.Bucket),
		DeadlineLabel:  info.Label,
	}
}

type CreateApplicationInput struct {
	FormTitle string
	FormURL   string
	Company   string
	Category  string
	Status    string
	Deadline  *time.Time
	Notes     string
	Tags      []string
}

func (s *Service) CreateApplication(ctx context.Context, ownerID string, input CreateApplicationInput) (ApplicationView, error) {
	now := s.now()
	app := store.Application{
		ID:        util.NewID("app"),
		OwnerID:   ownerID,
		FormTitle: input.FormTitle,
		FormURL:   input.FormURL,
		Company:   input.Company,
		Category:  input.Category,
		Status:    input.Status,
		Deadline:  input.Deadline,
		Notes:     input.Notes,
		Tags:      input.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if app.Category == "" {
		app.Category = store.CategoryPlacement
	}
	if app.Status == "" {
		app.Status = store.DefaultStatusFor(app.Category)
	}
	if err := validateApplication(&app); err != nil {
		return ApplicationView{}, err
	}
	if err := s.store.InsertApplication(ctx, app); err != nil {
		if errors.Is(err, store.ErrDuplicateURL) {
			return ApplicationView{}, duplicateURLError()
		}
		return ApplicationView{}, err
	}
	s.indexApplication(app)
	return s.view(app), nil
}

func (s *Service) GetApplication(ctx context.Context, ownerID, id string) (ApplicationView, error) {
	app, err := s.store.GetApplication(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ApplicationView{}, notFoundError("Application not found")
		}
		return ApplicationView{}, err
	}
	return s.view(app), nil
}

func (s *Service) ListApplications(ctx context.Context, ownerID string, filter store.ListFilter) ([]ApplicationView, error) {
	apps, err := s.store.ListApplications(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}
	views := make([]ApplicationView, 0, len(apps))
	for _, app := range apps {
		views = append(views, s.view(app))
	}
	return views, nil
}

// OptionalTime distinguishes an absent field from one explicitly set,
// including explicitly cleared.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

type UpdateApplicationInput struct {
	FormTitle *string
	Company   *string
	Category  *string
	Status    *string
	Deadline  OptionalTime
	Notes     *string
	Tags      *[]string
}

func (s *Service) UpdateApplication(ctx context.Context, ownerID, id string, input UpdateApplicationInput) (ApplicationView, error) {
	app, err := s.store.GetApplication(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ApplicationView{}, notFoundError("Application not found")
		}
		return ApplicationView{}, err
	}

	if input.FormTitle != nil {
		app.FormTitle = *input.FormTitle
	}
	if input.Company != nil {
		app.Company = *input.Company
	}
	if input.Notes != nil {
		app.Notes = *input.Notes
	}
	if input.Tags != nil {
		app.Tags = *input.Tags
	}
	if input.Deadline.Set {
		app.Deadline = input.Deadline.Value
	}
	if input.Category != nil && *input.Category != app.Category {
		app.Category = *input.Category
		// Switching category moves the record into a different status
		// vocabulary; without an explicit status it restarts at that
		// category's default.
		if input.Status == nil {
			app.Status = store.DefaultStatusFor(app.Category)
		}
	}
	if input.Status != nil {
		app.Status = *input.Status
	}

	if err := validateApplication(&app); err != nil {
		return ApplicationView{}, err
	}

	updated, err := s.store.UpdateApplication(ctx, app)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ApplicationView{}, notFoundError("Application not found")
		}
		return ApplicationView{}, err
	}
	s.indexApplication(updated)
	return s.view(updated), nil
}

func (s *Service) DeleteApplication(ctx context.Context, ownerID, id string) error {
	if err := s.store.DeleteApplication(ctx, ownerID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundError("Application not found")
		}
		return err
	}
	if s.search != nil {
		s.search.DeleteApplication(id)
	}
	return nil
}

func (s *Service) Analytics(ctx context.Context, ownerID string) (store.Analytics, error) {
	return s.store.AnalyticsCounts(ctx, ownerID)
}

// BookmarkletCreate ingests a capture from the bookmarklet: a page title and
// URL, no status or tags. The company is guessed from the title and a URL the
// owner already saved is rejected rather than saved twice.
func (s *Service) BookmarkletCreate(ctx context.Context, ownerID, formTitle, formURL, category string) (ApplicationView, error) {
	formTitle = strings.TrimSpace(formTitle)
	formURL = strings.TrimSpace(formURL)
	if formTitle == "" || formURL == "" {
		return ApplicationView{}, validationError("Form title and URL are required")
	}

	exists, err := s.store.ApplicationURLExists(ctx, ownerID, formURL)
	if err != nil {
		return ApplicationView{}, err
	}
	if exists {
		return ApplicationView{}, duplicateURLError()
	}

	return s.CreateApplication(ctx, ownerID, CreateApplicationInput{
		FormTitle: formTitle,
		FormURL:   formURL,
		Company:   company.Extract(formTitle, s.rules),
		Category:  category,
	})
}

func (s *Service) SearchApplications(ownerID, text string, limit, offset int) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}
	}
	return s.search.Search(search.Query{Text: text, OwnerID: ownerID, Limit: limit, Offset: offset})
}

func (s *Service) indexApplication(app store.Application) {
	if s.search == nil {
		return
	}
	s.search.IndexApplication(search.ApplicationRecord{
		ID:        app.ID,
		OwnerID:   app.OwnerID,
		FormTitle: app.FormTitle,
		Company:   app.Company,
		Notes:     app.Notes,
		Category:  app.Category,
		Status:    app.Status,
	})
}

// ── Reminders ──

func (s *Service) EmailConfigured() bool {
	return s.email.IsConfigured()
}

func (s *Service) SendTestReminder(ctx context.Context, userID string) error {
	return s.reminders.SendTest(ctx, userID)
}

func (s *Service) SendAllReminders(ctx context.Context) ([]reminder.Result, error) {
	return s.reminders.CheckAndSend(ctx)
}

// ── Validation ──

// validateApplication trims and checks a record in place. Tags are deduplicated
// preserving first occurrence.
func validateApplication(app *store.Application) error {
	app.FormTitle = strings.TrimSpace(app.FormTitle)
	app.FormURL = strings.TrimSpace(app.FormURL)
	app.Company = strings.TrimSpace(app.Company)

	if app.FormTitle == "" || app.FormURL == "" {
		return validationError("Form title and URL are required")
	}
	if len([]rune(app.FormTitle)) > maxFormTitleLen {
		return validationError(fmt.Sprintf("Form title cannot exceed %d characters", maxFormTitleLen))
	}
	if len([]rune(app.Company)) > maxCompanyLen {
		return validationError(fmt.Sprintf("Company cannot exceed %d characters", maxCompanyLen))
	}
	if len([]rune(app.Notes)) > maxNotesLen {
		return validationError(fmt.Sprintf("Notes cannot exceed %d characters", maxNotesLen))
	}

	if app.Category != store.CategoryPlacement && app.Category != store.CategoryForm {
		return validationError(fmt.Sprintf("Category must be %q or %q", store.CategoryPlacement, store.CategoryForm))
	}
	if !contains(store.StatusesFor(app.Category), app.Status) {
		return validationError(fmt.Sprintf("Status %q is not valid for category %q", app.Status, app.Category))
	}

	seen := make(map[string]bool, len(app.Tags))
	tags := make([]string, 0, len(app.Tags))
	for _, tag := range app.Tags {
		if !contains(store.AllowedTags, tag) {
			return validationError(fmt.Sprintf("Tag %q is not allowed", tag))
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	app.Tags = tags
	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
