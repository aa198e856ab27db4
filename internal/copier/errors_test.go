package copier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/withObsrvr/pgcopier/internal/partition"
)

func TestTimeoutOr_DeadlineBecomesTimeout(t *testing.T) {
	cause := fmt.Errorf("query: %w", context.DeadlineExceeded)
	err := timeoutOr("public.orders", "chunk select", cause, &QueryError{Table: "public.orders", Err: cause})

	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("classified as %T, want *TimeoutError", err)
	}
	if timeout.Op != "chunk select" || timeout.Table != "public.orders" {
		t.Errorf("timeout = %+v", timeout)
	}
}

func TestTimeoutOr_OtherErrorsKeepFallback(t *testing.T) {
	cause := errors.New("duplicate key value violates unique constraint")
	fallback := &BatchInsertError{Table: "public.orders", Err: cause}
	err := timeoutOr("public.orders", "batch insert", cause, fallback)

	var batch *BatchInsertError
	if !errors.As(err, &batch) {
		t.Fatalf("classified as %T, want *BatchInsertError", err)
	}
}

func TestBatchInsertError_ReportsChunkAndRows(t *testing.T) {
	err := &BatchInsertError{
		Table:    "public.orders",
		Chunk:    partition.Chunk{Offset: 5000, Limit: 2500},
		FirstRow: 6000,
		Rows:     1000,
		Err:      errors.New("boom"),
	}

	msg := err.Error()
	for _, want := range []string{"public.orders", "5000", "7500", "6000", "7000"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestErrorUnwrapping(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := []error{
		&ConnectionError{DB: "source", Err: cause},
		&QueryError{Table: "t", Err: cause},
		&TimeoutError{Table: "t", Op: "op", Err: cause},
		&TruncateError{Table: "t", Err: cause},
		&BatchInsertError{Table: "t", Err: cause},
	}
	for _, err := range wrapped {
		if !errors.Is(err, cause) {
			t.Errorf("%T does not unwrap to its cause", err)
		}
	}
}

func TestAnyFailed(t *testing.T) {
	ok := CopyResult{Status: StatusCompleted}
	bad := CopyResult{Status: StatusFailed, Errors: []error{errors.New("x")}}

	if AnyFailed([]CopyResult{ok, ok}) {
		t.Error("AnyFailed = true for all-completed batch")
	}
	if !AnyFailed([]CopyResult{ok, bad, ok}) {
		t.Error("AnyFailed = false with a failed table present")
	}
	if AnyFailed(nil) {
		t.Error("AnyFailed = true for empty batch")
	}
}
