package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateURL reports that the owner already saved this form URL. It is
// raised by the unique index on (user_id, form_url).
var ErrDuplicateURL = errors.New("application url already saved")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Users ──

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash)
		VALUES ($1, $2, $3, $4)
	`, user.ID, user.Name, user.Email, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2 WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// ── Password resets ──

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, used_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

// GetPasswordReset returns the user ID for an unexpired, unused reset token.
func (s *PostgresStore) GetPasswordReset(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token_hash=$1 AND used_at IS NULL AND expires_at > NOW()
	`, tokenHash).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

// ── Refresh sessions (Postgres fallback when Redis is not configured) ──

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.name, u.email
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.Name, &user.Email)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// ── Applications ──

const applicationColumns = `id, user_id, form_title, form_url, company, category, status, deadline, notes, tags, created_at, updated_at`

func (s *PostgresStore) InsertApplication(ctx context.Context, item Application) error {
	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO applications (id, user_id, form_title, form_url, company, category, status, deadline, notes, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, item.ID, item.OwnerID, item.FormTitle, item.FormURL, item.Company, item.Category, item.Status, item.Deadline, item.Notes, tags, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "idx_applications_user_url") {
			return ErrDuplicateURL
		}
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.SQLState() == "23505" && pgErr.ConstraintName == constraint
}

// GetApplication is owner-scoped: a record owned by someone else scans as
// sql.ErrNoRows, indistinguishable from a missing record.
func (s *PostgresStore) GetApplication(ctx context.Context, ownerID, id string) (Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE id=$1 AND user_id=$2
	`, id, ownerID)
	return scanApplication(row)
}

var sortClauses = map[string]string{
	"createdAt":  "created_at ASC",
	"-createdAt": "created_at DESC",
	"deadline":   "deadline ASC NULLS LAST",
	"-deadline":  "deadline DESC NULLS LAST",
	"formTitle":  "form_title ASC",
	"-formTitle": "form_title DESC",
}

func (s *PostgresStore) ListApplications(ctx context.Context, ownerID string, filter ListFilter) ([]Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE user_id=$1`
	args := []any{ownerID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		query += fmt.Sprintf(" AND (form_title ILIKE $%d OR company ILIKE $%d)", len(args), len(args))
	}

	orderBy, ok := sortClauses[filter.Sort]
	if !ok {
		orderBy = sortClauses["-createdAt"]
	}
	query += " ORDER BY " + orderBy

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	items := make([]Application, 0)
	for rows.Next() {
		item, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return items, nil
}

// UpdateApplication writes the full validated row. Returns sql.ErrNoRows when
// the record does not exist under that owner.
func (s *PostgresStore) UpdateApplication(ctx context.Context, item Application) (Application, error) {
	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return Application{}, fmt.Errorf("marshal tags: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE applications
		SET form_title=$3, company=$4, category=$5, status=$6, deadline=$7, notes=$8, tags=$9, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
		RETURNING `+applicationColumns+`
	`, item.ID, item.OwnerID, item.FormTitle, item.Company, item.Category, item.Status, item.Deadline, item.Notes, tags)
	return scanApplication(row)
}

func (s *PostgresStore) DeleteApplication(ctx context.Context, ownerID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE id=$1 AND user_id=$2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ApplicationURLExists(ctx context.Context, ownerID, formURL string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM applications WHERE user_id=$1 AND form_url=$2)
	`, ownerID, formURL).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check duplicate url: %w", err)
	}
	return exists, nil
}

// AnalyticsCounts aggregates one owner's records on demand. Records without a
// category count under Placement.
func (s *PostgresStore) AnalyticsCounts(ctx context.Context, ownerID string) (Analytics, error) {
	stats := Analytics{
		ByStatus:   map[string]int{},
		ByCategory: map[string]int{},
		ByTag:      map[string]int{},
	}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications WHERE user_id=$1`, ownerID).Scan(&stats.Total)
	if err != nil {
		return Analytics{}, fmt.Errorf("count applications: %w", err)
	}

	if err := s.countInto(ctx, stats.ByStatus, `
		SELECT status, COUNT(*) FROM applications WHERE user_id=$1 GROUP BY status
	`, ownerID); err != nil {
		return Analytics{}, fmt.Errorf("count by status: %w", err)
	}

	if err := s.countInto(ctx, stats.ByCategory, `
		SELECT COALESCE(NULLIF(category, ''), 'Placement'), COUNT(*)
		FROM applications WHERE user_id=$1 GROUP BY 1
	`, ownerID); err != nil {
		return Analytics{}, fmt.Errorf("count by category: %w", err)
	}

	if err := s.countInto(ctx, stats.ByTag, `
		SELECT tag, COUNT(*)
		FROM applications, jsonb_array_elements_text(tags) AS tag
		WHERE user_id=$1 GROUP BY tag
	`, ownerID); err != nil {
		return Analytics{}, fmt.Errorf("count by tag: %w", err)
	}

	return stats, nil
}

func (s *PostgresStore) countInto(ctx context.Context, target map[string]int, query, ownerID string) error {
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		target[key] = count
	}
	return rows.Err()
}

// ListDueBetween returns every owner's applications with a deadline inside
// [from, to], joined with owner contact info, excluding terminal statuses.
// The exclusion uses the Placement terminal values for every category.
func (s *PostgresStore) ListDueBetween(ctx context.Context, from, to time.Time) ([]DueApplication, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.user_id, a.form_title, a.form_url, a.company, a.category, a.status,
			a.deadline, a.notes, a.tags, a.created_at, a.updated_at, u.name, u.email
		FROM applications a
		JOIN users u ON u.id = a.user_id
		WHERE a.deadline >= $1 AND a.deadline <= $2
			AND a.status <> ALL($3::text[])
		ORDER BY a.user_id, a.deadline ASC
	`, from, to, "{"+strings.Join(TerminalStatuses, ",")+"}")
	if err != nil {
		return nil, fmt.Errorf("list due applications: %w", err)
	}
	defer rows.Close()

	items := make([]DueApplication, 0)
	for rows.Next() {
		var item DueApplication
		var tags []byte
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.FormTitle, &item.FormURL, &item.Company,
			&item.Category, &item.Status, &item.Deadline, &item.Notes, &tags,
			&item.CreatedAt, &item.UpdatedAt, &item.OwnerName, &item.OwnerEmail); err != nil {
			return nil, fmt.Errorf("scan due application: %w", err)
		}
		if err := unmarshalTags(tags, &item.Tags); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due applications: %w", err)
	}
	return items, nil
}

// ListWithDeadline returns up to limit of an owner's applications that track
// a deadline, soonest first. Used by the test-reminder path.
func (s *PostgresStore) ListWithDeadline(ctx context.Context, ownerID string, limit int) ([]Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE user_id=$1 AND deadline IS NOT NULL
		ORDER BY deadline ASC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list applications with deadline: %w", err)
	}
	defer rows.Close()

	items := make([]Application, 0)
	for rows.Next() {
		item, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (Application, error) {
	var item Application
	var tags []byte
	err := row.Scan(&item.ID, &item.OwnerID, &item.FormTitle, &item.FormURL, &item.Company,
		&item.Category, &item.Status, &item.Deadline, &item.Notes, &tags,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Application{}, err
		}
		return Application{}, fmt.Errorf("scan application: %w", err)
	}
	if err := unmarshalTags(tags, &item.Tags); err != nil {
		return Application{}, err
	}
	return item, nil
}

func unmarshalTags(raw []byte, target *[]string) error {
	*target = []string{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("unmarshal tags: %w", err)
	}
	if *target == nil {
		*target = []string{}
	}
	return nil
}

// escapeLike neutralizes LIKE metacharacters in user search input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
