package helper

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm translated", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		{"lib/pq", &pq.Error{Code: "23505"}, true},
		{"lib/pq other code", &pq.Error{Code: "23503"}, false},
		{"pgx", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"}), true},
		{"pgx other state", &pgconn.PgError{Code: "40001"}, false},
		{"sqlite", errors.New("UNIQUE constraint failed: teacher_earnings.teacher_earning_session_id"), true},
		{"not found", gorm.ErrRecordNotFound, false},
	}
	for _, c := range cases {
		if got := IsUniqueViolation(c.err); got != c.want {
			t.Fatalf("%s: IsUniqueViolation = %v, want %v", c.name, got, c.want)
		}
	}
}
