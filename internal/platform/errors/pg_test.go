package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestDBErrorCode(t *testing.T) {
	cases := []struct {
		code string
		want ErrorCode
	}{
		{"23505", ErrorCodeConflict},
		{"23503", ErrorCodeInvalidArgument},
		{"23502", ErrorCodeValidation},
		{"23514", ErrorCodeValidation},
		{"22P02", ErrorCodeInvalidArgument},
		{"40001", ErrorCodeConflict},
		{"40P01", ErrorCodeConflict},
		{"25006", ErrorCodeUnavailable},
		{"57P03", ErrorCodeUnavailable},
		{"XX000", ErrorCodeDB},
	}
	for _, c := range cases {
		got, ok := DBErrorCode(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: c.code}))
		if !ok || got != c.want {
			t.Fatalf("DBErrorCode(%s) = %v,%v want %v", c.code, got, ok, c.want)
		}
	}
	if _, ok := DBErrorCode(stderrs.New("plain")); ok {
		t.Fatal("plain errors are not pg errors")
	}
}

func TestFromPostgres(t *testing.T) {
	if FromPostgres(nil, "x") != nil {
		t.Fatal("nil should stay nil")
	}
	dup := FromPostgres(&pgconn.PgError{Code: "23505"}, "insert order")
	if !IsCode(dup, ErrorCodeConflict) || !IsDuplicateKey(dup) {
		t.Fatalf("duplicate mapping: %v", dup)
	}
	if got := CodeOf(FromPostgres(context.DeadlineExceeded, "lease")); got != ErrorCodeTimeout {
		t.Fatalf("deadline mapping = %v", got)
	}
	if got := CodeOf(FromPostgres(stderrs.New("weird"), "x")); got != ErrorCodeDB {
		t.Fatalf("fallback mapping = %v", got)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&pgconn.PgError{Code: "40001"}) {
		t.Fatal("serialization failure should be retryable")
	}
	if IsRetryable(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("duplicate key is not retryable")
	}
	if IsRetryable(context.Canceled) || IsRetryable(nil) {
		t.Fatal("cancellation and nil are not retryable")
	}
	if !IsRetryable(stderrs.New("ERROR: deadlock detected")) {
		t.Fatal("text fallback should match deadlocks")
	}
}
