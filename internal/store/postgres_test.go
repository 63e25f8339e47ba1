package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "idx_applications_user_url"}

	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"matching constraint", dup, "idx_applications_user_url", true},
		{"wrapped by the driver path", fmt.Errorf("insert application: %w", dup), "idx_applications_user_url", true},
		{"different constraint", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}, "idx_applications_user_url", false},
		{"different sqlstate", &pgconn.PgError{Code: "23503", ConstraintName: "idx_applications_user_url"}, "idx_applications_user_url", false},
		{"not a pg error", errors.New("connection reset"), "idx_applications_user_url", false},
		{"nil error", nil, "idx_applications_user_url", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isUniqueViolation(tc.err, tc.constraint); got != tc.want {
				t.Fatalf("isUniqueViolation(%v, %q) = %v, want %v", tc.err, tc.constraint, got, tc.want)
			}
		})
	}
}
