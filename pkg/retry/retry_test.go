package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:   maxRetries,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries=3, got %d", cfg.MaxRetries)
	}
	if cfg.InitialDelay != 100*time.Millisecond {
		t.Errorf("expected InitialDelay=100ms, got %v", cfg.InitialDelay)
	}
	if cfg.MaxSameErrorType != 5 {
		t.Errorf("expected MaxSameErrorType=5, got %d", cfg.MaxSameErrorType)
	}

	startup := StartupConfig()
	if startup.MaxRetries <= cfg.MaxRetries {
		t.Errorf("expected startup config to retry more than default, got %d", startup.MaxRetries)
	}
}

func TestApplyJitter_StaysInBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 200; i++ {
		got := applyJitter(base, 0.1)
		if got < 90*time.Millisecond || got > 110*time.Millisecond {
			t.Fatalf("jittered delay %v outside +/-10%% of %v", got, base)
		}
	}
	if got := applyJitter(base, 0); got != base {
		t.Errorf("expected no jitter with factor 0, got %v", got)
	}
}

func TestDo(t *testing.T) {
	tests := []struct {
		name      string
		failUntil int // calls before success; -1 never succeeds
		retries   int
		wantCalls int
		wantErr   bool
	}{
		{"first call succeeds", 0, 3, 1, false},
		{"succeeds after retries", 2, 3, 3, false},
		{"retries exhausted", -1, 2, 3, true},
		{"zero retries", -1, 0, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), fastConfig(tt.retries), func() error {
				calls++
				if tt.failUntil < 0 || calls <= tt.failUntil {
					return fmt.Errorf("attempt %d failed", calls)
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("unexpected error state: %v", err)
			}
			if calls != tt.wantCalls {
				t.Errorf("expected %d calls, got %d", tt.wantCalls, calls)
			}
			if tt.wantErr && !strings.Contains(err.Error(), fmt.Sprintf("attempt %d", calls)) {
				t.Errorf("expected last error to be returned, got %v", err)
			}
		})
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxRetries: 5, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2.0}

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	calls := 0
	start := time.Now()
	err := Do(ctx, cfg, func() error {
		calls++
		return errors.New("down")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("expected quick cancellation, took %v", elapsed)
	}
}

func TestDo_BackoffCappedByMaxDelay(t *testing.T) {
	cfg := &Config{MaxRetries: 4, InitialDelay: 10 * time.Millisecond, MaxDelay: 15 * time.Millisecond, Multiplier: 10.0}

	var stamps []time.Time
	_ = Do(context.Background(), cfg, func() error {
		stamps = append(stamps, time.Now())
		return errors.New("down")
	})

	if len(stamps) != 5 {
		t.Fatalf("expected 5 calls, got %d", len(stamps))
	}
	for i := 2; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap > 100*time.Millisecond {
			t.Errorf("gap %d = %v, expected it capped near MaxDelay", i, gap)
		}
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastConfig(3), func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("connection refused")
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got != 42 || calls != 2 {
		t.Errorf("expected 42 after 2 calls, got %d after %d", got, calls)
	}

	got, err = DoWithResult[int](context.Background(), nil, func() (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Errorf("expected nil config to use defaults, got %d, %v", got, err)
	}
}

type declaredError struct{ retry bool }

func (e declaredError) Error() string     { return "declared" }
func (e declaredError) IsRetryable() bool { return e.retry }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"wrapped deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), false},
		{"declared retryable", declaredError{retry: true}, true},
		{"declared permanent", fmt.Errorf("wrap: %w", declaredError{retry: false}), false},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock detected", &pgconn.PgError{Code: "40P01"}, true},
		{"cannot connect now", &pgconn.PgError{Code: "57P03"}, true},
		{"connection exception class", &pgconn.PgError{Code: "08006"}, true},
		{"too many clients class", &pgconn.PgError{Code: "53300"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"undefined table", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "42P01"}), false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"Connection Reset (uppercase)", errors.New("Connection Reset by peer"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"i/o timeout", errors.New("i/o timeout"), true},
		{"redis loading", errors.New("LOADING Redis is loading the dataset in memory"), true},
		{"auth error", errors.New("password authentication failed"), false},
		{"syntax error", errors.New("syntax error at position 10"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClassifyErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "nil"},
		{&pgconn.PgError{Code: "40P01"}, "sqlstate_40P01"},
		{errors.New("connection refused"), "connection"},
		{errors.New("read timed out"), "timeout"},
		{errors.New("broken pipe"), "broken_pipe"},
		{errors.New("something odd"), "unknown"},
	}
	for _, tt := range tests {
		if got := classifyErrorType(tt.err); got != tt.want {
			t.Errorf("classifyErrorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestDoIfRetryable_RetriesTransientErrors(t *testing.T) {
	calls := 0
	err := DoIfRetryable(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoIfRetryable_PermanentErrorReturnsImmediately(t *testing.T) {
	permanent := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	calls := 0
	err := DoIfRetryable(context.Background(), fastConfig(3), func() error {
		calls++
		return permanent
	})

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		t.Errorf("expected the unique violation back, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retries), got %d", calls)
	}
}

func TestDoIfRetryable_RepeatedErrorTypeEscalates(t *testing.T) {
	cfg := fastConfig(10)
	cfg.MaxSameErrorType = 3

	calls := 0
	err := DoIfRetryable(context.Background(), cfg, func() error {
		calls++
		return errors.New("connection refused")
	})

	if err == nil || !strings.Contains(err.Error(), "repeated error (3 times, type=connection)") {
		t.Errorf("expected repeated error escalation, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoIfRetryable_ExhaustsRetries(t *testing.T) {
	expected := errors.New("connection reset by peer")
	calls := 0
	err := DoIfRetryable(context.Background(), fastConfig(2), func() error {
		calls++
		return expected
	})

	if !errors.Is(err, expected) {
		t.Errorf("expected %v, got %v", expected, err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls (1 initial + 2 retries), got %d", calls)
	}
}

func TestDoIfRetryable_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxRetries: 5, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2.0}

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	calls := 0
	err := DoIfRetryable(ctx, cfg, func() error {
		calls++
		return errors.New("connection timeout")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
