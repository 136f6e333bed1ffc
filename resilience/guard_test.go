package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_NilGuard(t *testing.T) {
	got, err := Do(context.Background(), nil, func(context.Context) (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Fatalf("Do() = %d, %v", got, err)
	}
}

func TestDo_ZeroGuardPassesThrough(t *testing.T) {
	boom := errors.New("boom")
	_, err := Do(context.Background(), NewGuard(), func(context.Context) ([]byte, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Do() = %v, want boom", err)
	}
}

func TestDo_Timeout(t *testing.T) {
	g := NewGuard(WithTimeout(10 * time.Millisecond))

	_, err := Do(context.Background(), g, func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Do() = %v, want ErrTimeout", err)
	}
}

func TestDo_BulkheadFull(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	g := NewGuard(WithBulkhead(b))
	_ = b.Acquire(context.Background())

	ran := false
	_, err := Do(context.Background(), g, func(context.Context) (int, error) {
		ran = true
		return 0, nil
	})
	if !errors.Is(err, ErrBulkheadFull) {
		t.Fatalf("Do() = %v, want ErrBulkheadFull", err)
	}
	if ran {
		t.Error("operation ran without a slot")
	}
}

func TestDo_ReleasesSlot(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	g := NewGuard(WithBulkhead(b), WithTimeout(time.Second))

	for i := range 3 {
		if _, err := Do(context.Background(), g, func(context.Context) (int, error) { return i, nil }); err != nil {
			t.Fatalf("Do #%d = %v", i, err)
		}
	}
	if b.Metrics().Active != 0 {
		t.Error("slot leaked")
	}
	if g.Bulkhead() != b {
		t.Error("Bulkhead() did not return configured bulkhead")
	}
}

func TestDoTracked_TimedOutOperationKeepsSlot(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1, MaxWait: 10 * time.Millisecond})
	g := NewGuard(WithBulkhead(b), WithTimeout(10*time.Millisecond))

	release := make(chan struct{})
	_, released, err := DoTracked(context.Background(), g, func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("DoTracked() = %v, want ErrTimeout", err)
	}
	if got := b.Metrics().Active; got != 1 {
		t.Fatalf("Active = %d after timeout, want 1", got)
	}
	if _, err := Do(context.Background(), g, func(context.Context) (int, error) { return 0, nil }); !errors.Is(err, ErrBulkheadFull) {
		t.Fatalf("second Do() = %v, want ErrBulkheadFull", err)
	}

	close(release)
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("released not closed after the operation returned")
	}
	if got := b.Metrics().Active; got != 0 {
		t.Errorf("Active = %d after release, want 0", got)
	}
}

func TestDoTracked_ReleasedWhenNotStarted(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	_ = b.Acquire(context.Background())

	_, released, err := DoTracked(context.Background(), NewGuard(WithBulkhead(b)), func(context.Context) (int, error) {
		return 0, nil
	})
	if !errors.Is(err, ErrBulkheadFull) {
		t.Fatalf("DoTracked() = %v, want ErrBulkheadFull", err)
	}
	select {
	case <-released:
	default:
		t.Error("released not closed for an operation that never started")
	}
}
