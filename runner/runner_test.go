package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PolicyEngine/obr-forecast/cache"
	"github.com/PolicyEngine/obr-forecast/job"
	"github.com/PolicyEngine/obr-forecast/observe"
	"github.com/PolicyEngine/obr-forecast/resilience"
)

// fakeCompute counts invocations and can hold units until released.
type fakeCompute struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	fn      func(params any) ([]byte, error)
}

func newFakeCompute(fn func(params any) ([]byte, error)) *fakeCompute {
	return &fakeCompute{
		started: make(chan struct{}, 16),
		fn:      fn,
	}
}

func (f *fakeCompute) hold() *fakeCompute {
	f.release = make(chan struct{})
	return f
}

func (f *fakeCompute) Compute(ctx context.Context, _ string, params any) ([]byte, error) {
	f.calls.Add(1)
	f.started <- struct{}{}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.fn(params)
}

func echoResult(params any) ([]byte, error) {
	return json.Marshal(map[string]any{"echo": params})
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRunner(t *testing.T, fc *fakeCompute, opts ...Option) (*Runner, *cache.MemoryCache) {
	t.Helper()
	mc := cache.NewMemoryCache()
	r, err := New(fc.Compute, append([]Option{WithCache(mc)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if fc.release != nil {
			select {
			case <-fc.release:
			default:
				close(fc.release)
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.Close(ctx)
	})
	return r, mc
}

func waitUnits(t *testing.T, r *Runner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func mustPoll(t *testing.T, r *Runner, id job.ID) Status {
	t.Helper()
	st, err := r.Poll(id.String())
	if err != nil {
		t.Fatalf("Poll(%s) error = %v", id, err)
	}
	return st
}

func TestNew_NilCompute(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNilCompute) {
		t.Fatalf("New(nil) = %v, want ErrNilCompute", err)
	}
}

// Scenario A: a first submission for a new key starts computing.
func TestSubmit_FirstSubmissionIsPending(t *testing.T) {
	fc := newFakeCompute(echoResult).hold()
	r, _ := newTestRunner(t, fc)

	id, err := r.Submit(context.Background(), "ns", map[string]any{"a": 1}, time.Minute)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	st := mustPoll(t, r, id)
	if st.State != StateComputing || st.Terminal() {
		t.Fatalf("State = %q, want %q", st.State, StateComputing)
	}
	if st.Result != nil || st.Error != "" {
		t.Errorf("computing status carries result/error: %+v", st)
	}

	close(fc.release)
	waitUnits(t, r)
}

// Scenario B: a repeated submission is served from cache without computing.
func TestSubmit_RepeatServedFromCache(t *testing.T) {
	fc := newFakeCompute(echoResult)
	r, _ := newTestRunner(t, fc)
	ctx := context.Background()
	params := map[string]any{"a": 1}

	first, _ := r.Submit(ctx, "ns", params, time.Minute)
	waitUnits(t, r)

	st1 := mustPoll(t, r, first)
	if st1.State != StateCompleted {
		t.Fatalf("first State = %q, want completed", st1.State)
	}
	if st1.ServedFromCache {
		t.Error("first job should not be served from cache")
	}

	second, err := r.Submit(ctx, "ns", map[string]any{"a": 1.0}, time.Minute)
	if err != nil {
		t.Fatalf("second Submit() error = %v", err)
	}
	if second == first {
		t.Fatal("expected a new job id")
	}

	st2 := mustPoll(t, r, second)
	if st2.State != StateCompleted || !st2.ServedFromCache {
		t.Fatalf("second status = %+v, want completed from cache", st2)
	}
	if !bytes.Equal(st2.Result, st1.Result) {
		t.Errorf("cached result = %s, want %s", st2.Result, st1.Result)
	}
	if n := fc.calls.Load(); n != 1 {
		t.Errorf("compute calls = %d, want 1", n)
	}
}

// Scenario C: concurrent first-time submissions both compute; last write wins.
func TestSubmit_ConcurrentFirstSubmissionsBothCompute(t *testing.T) {
	var seq atomic.Int32
	fc := newFakeCompute(func(any) ([]byte, error) {
		return []byte(fmt.Sprintf(`{"n":%d}`, seq.Add(1))), nil
	}).hold()
	r, mc := newTestRunner(t, fc)
	ctx := context.Background()
	params := map[string]any{"a": 1}

	id1, _ := r.Submit(ctx, "ns", params, time.Minute)
	id2, _ := r.Submit(ctx, "ns", params, time.Minute)
	<-fc.started
	<-fc.started

	close(fc.release)
	waitUnits(t, r)

	if n := fc.calls.Load(); n != 2 {
		t.Fatalf("compute calls = %d, want 2", n)
	}

	key, _ := cache.NewDefaultKeyer().Key("ns", params)
	stored, ok := mc.Get(ctx, key)
	if !ok {
		t.Fatal("cache entry missing")
	}
	r1, r2 := mustPoll(t, r, id1).Result, mustPoll(t, r, id2).Result
	if !bytes.Equal(stored, r1) && !bytes.Equal(stored, r2) {
		t.Errorf("cache holds %s, want one of %s or %s", stored, r1, r2)
	}
	if mc.Len() != 1 {
		t.Errorf("cache entries = %d, want 1", mc.Len())
	}
}

// Scenario D: clearing keeps counters.
func TestClearCache_KeepsCounters(t *testing.T) {
	fc := newFakeCompute(echoResult)
	r, _ := newTestRunner(t, fc)
	ctx := context.Background()

	_, _ = r.Submit(ctx, "ns", map[string]any{"a": 1}, time.Minute) // miss
	waitUnits(t, r)
	_, _ = r.Submit(ctx, "ns", map[string]any{"a": 1}, time.Minute) // hit

	r.ClearCache()
	stats := r.CacheStats(ctx)

	if stats.Entries != 0 {
		t.Errorf("Entries = %d, want 0", stats.Entries)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", stats.Hits, stats.Misses)
	}
	if stats.HitRatio != 0.5 {
		t.Errorf("HitRatio = %v, want 0.5", stats.HitRatio)
	}
	if stats.Jobs.Completed != 2 {
		t.Errorf("Jobs.Completed = %d, want 2", stats.Jobs.Completed)
	}
}

// Scenario E: a failed computation is reported and never cached.
func TestSubmit_FailureNotCached(t *testing.T) {
	fc := newFakeCompute(func(any) ([]byte, error) {
		return nil, errors.New("unknown forecast: autumn_2099")
	})
	r, mc := newTestRunner(t, fc)

	id, err := r.Submit(context.Background(), "ns", map[string]any{"a": 1}, time.Minute)
	if err != nil {
		t.Fatalf("Submit() should not surface computation errors, got %v", err)
	}
	waitUnits(t, r)

	st := mustPoll(t, r, id)
	if st.State != StateFailed || st.Error != "unknown forecast: autumn_2099" {
		t.Fatalf("status = %+v", st)
	}
	if mc.Len() != 0 {
		t.Errorf("cache entries = %d, want 0", mc.Len())
	}
}

func TestSubmit_PanicBecomesFailedJob(t *testing.T) {
	fc := newFakeCompute(func(any) ([]byte, error) {
		panic("index out of range")
	})
	r, mc := newTestRunner(t, fc)

	id, _ := r.Submit(context.Background(), "ns", map[string]any{"a": 1}, time.Minute)
	waitUnits(t, r)

	st := mustPoll(t, r, id)
	if st.State != StateFailed || st.Error != "panic: index out of range" {
		t.Fatalf("status = %+v", st)
	}
	if mc.Len() != 0 {
		t.Error("panicking computation must not be cached")
	}
}

func TestSubmit_InvalidJSONFails(t *testing.T) {
	fc := newFakeCompute(func(any) ([]byte, error) { return []byte("not json"), nil })
	r, mc := newTestRunner(t, fc)

	id, _ := r.Submit(context.Background(), "ns", 1, time.Minute)
	waitUnits(t, r)

	if st := mustPoll(t, r, id); st.State != StateFailed || st.Error != ErrInvalidResult.Error() {
		t.Fatalf("status = %+v", st)
	}
	if mc.Len() != 0 {
		t.Error("invalid result must not be cached")
	}
}

func TestSubmit_UnitOutlivesRequestContext(t *testing.T) {
	fc := newFakeCompute(echoResult).hold()
	r, _ := newTestRunner(t, fc)

	ctx, cancel := context.WithCancel(context.Background())
	id, _ := r.Submit(ctx, "ns", 1, time.Minute)
	<-fc.started
	cancel()
	close(fc.release)
	waitUnits(t, r)

	if st := mustPoll(t, r, id); st.State != StateCompleted {
		t.Fatalf("State = %q, want completed after request cancel", st.State)
	}
}

func TestSubmit_TimeoutGuard(t *testing.T) {
	fc := newFakeCompute(echoResult).hold()
	r, _ := newTestRunner(t, fc, WithGuard(resilience.NewGuard(resilience.WithTimeout(20*time.Millisecond))))

	id, _ := r.Submit(context.Background(), "ns", 1, time.Minute)
	waitUnits(t, r)

	st := mustPoll(t, r, id)
	if st.State != StateFailed || st.Error != resilience.ErrTimeout.Error() {
		t.Fatalf("status = %+v, want timeout failure", st)
	}
}

func TestSubmit_TimedOutUnitHoldsSlotUntilReturn(t *testing.T) {
	gate := make(chan struct{})
	var running, peak atomic.Int32
	compute := func(_ context.Context, _ string, params any) ([]byte, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-gate
		running.Add(-1)
		return json.Marshal(params)
	}

	guard := resilience.NewGuard(
		resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 1, MaxWait: 5 * time.Second})),
		resilience.WithTimeout(20*time.Millisecond),
	)
	r, err := New(compute, WithGuard(guard))
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		select {
		case <-gate:
		default:
			close(gate)
		}
	}()

	ctx := context.Background()
	var ids []job.ID
	for i := range 3 {
		id, err := r.Submit(ctx, "ns", i, time.Minute)
		if err != nil {
			t.Fatalf("Submit #%d: %v", i, err)
		}
		ids = append(ids, id)
	}

	deadline := time.Now().Add(2 * time.Second)
	var timedOut job.ID
	for timedOut == "" && time.Now().Before(deadline) {
		for _, id := range ids {
			if mustPoll(t, r, id).State == StateFailed {
				timedOut = id
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	if timedOut == "" {
		t.Fatal("no unit reported a timeout")
	}
	if st := mustPoll(t, r, timedOut); st.Error != resilience.ErrTimeout.Error() {
		t.Fatalf("timed out status = %+v", st)
	}
	if n := running.Load(); n != 1 {
		t.Fatalf("running = %d while the timed out unit is stuck, want 1", n)
	}
	if slots := r.CacheStats(ctx).Slots; slots == nil || slots.Active != 1 || slots.Capacity != 1 {
		t.Errorf("Slots = %+v, want the single slot held", slots)
	}

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := r.Close(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Close() = %v while a computation is still running, want DeadlineExceeded", err)
	}

	close(gate)
	waitUnits(t, r)

	if p := peak.Load(); p != 1 {
		t.Errorf("peak concurrent computations = %d, want 1", p)
	}
	if n := running.Load(); n != 0 {
		t.Errorf("running = %d after Wait, want 0", n)
	}
}

// panickyStore panics when a result is stored.
type panickyStore struct {
	*cache.MemoryCache
}

func (panickyStore) Put(context.Context, string, []byte, time.Duration) {
	panic("store unavailable")
}

func TestSubmit_StorePanicBecomesFailedJob(t *testing.T) {
	fc := newFakeCompute(echoResult)
	r, err := New(fc.Compute, WithCache(panickyStore{cache.NewMemoryCache()}))
	if err != nil {
		t.Fatal(err)
	}

	id, _ := r.Submit(context.Background(), "ns", "p", time.Minute)
	waitUnits(t, r)

	st := mustPoll(t, r, id)
	if st.State != StateFailed || st.Error != "panic: store unavailable" {
		t.Fatalf("status = %+v, want failed with the store panic", st)
	}
}

func TestSubmit_TTLFromPolicy(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 26, 9, 0, 0, 0, time.UTC)}
	mc := cache.NewMemoryCache(cache.WithClock(clock.Now))
	fc := newFakeCompute(echoResult)
	r, err := New(fc.Compute, WithCache(mc), WithPolicy(cache.Policy{DefaultTTL: time.Minute, MaxTTL: time.Hour}))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	_, _ = r.Submit(ctx, "ns", "p", 0)
	waitUnits(t, r)

	clock.Advance(time.Minute)
	if id, _ := r.Submit(ctx, "ns", "p", 0); !mustPoll(t, r, id).ServedFromCache {
		t.Fatal("expected hit at exactly the default TTL")
	}

	clock.Advance(time.Second)
	id, _ := r.Submit(ctx, "ns", "p", 0)
	waitUnits(t, r)
	if mustPoll(t, r, id).ServedFromCache {
		t.Fatal("expected miss after the default TTL")
	}
	if n := fc.calls.Load(); n != 2 {
		t.Errorf("compute calls = %d, want 2", n)
	}
}

func TestSubmit_DegradedKeyStillRuns(t *testing.T) {
	fc := newFakeCompute(func(any) ([]byte, error) { return []byte(`{}`), nil })
	r, _ := newTestRunner(t, fc)

	id, err := r.Submit(context.Background(), "ns", map[string]any{"ch": make(chan int)}, time.Minute)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitUnits(t, r)

	if st := mustPoll(t, r, id); st.State != StateCompleted {
		t.Fatalf("State = %q, want completed", st.State)
	}
}

func TestSubmit_Validation(t *testing.T) {
	r, _ := newTestRunner(t, newFakeCompute(echoResult))

	if _, err := r.Submit(context.Background(), "", 1, 0); !errors.Is(err, ErrEmptyNamespace) {
		t.Errorf("empty namespace: err = %v", err)
	}

	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := r.Submit(context.Background(), "ns", 1, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("after Close: err = %v, want ErrClosed", err)
	}
}

func TestPoll_NotFound(t *testing.T) {
	r, _ := newTestRunner(t, newFakeCompute(echoResult))

	if _, err := r.Poll("does-not-exist"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Poll() = %v, want ErrNotFound", err)
	}
}

func TestPoll_ExpiredJobNotFound(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 26, 9, 0, 0, 0, time.UTC)}
	reg := job.NewRegistry(job.Config{Retention: time.Hour, Now: clock.Now})
	r, _ := newTestRunner(t, newFakeCompute(echoResult), WithRegistry(reg))

	id, _ := r.Submit(context.Background(), "ns", 1, time.Minute)
	waitUnits(t, r)
	clock.Advance(2 * time.Hour)

	if _, err := r.Poll(id.String()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Poll() = %v, want ErrNotFound", err)
	}
}

func TestPoll_IsReadOnly(t *testing.T) {
	r, mc := newTestRunner(t, newFakeCompute(echoResult))
	id, _ := r.Submit(context.Background(), "ns", 1, time.Minute)
	waitUnits(t, r)

	before := mc.Stats()
	for range 5 {
		mustPoll(t, r, id)
	}
	if after := mc.Stats(); after != before {
		t.Errorf("cache stats changed by Poll: %+v -> %+v", before, after)
	}
}

func TestCacheStats_Sweeps(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 26, 9, 0, 0, 0, time.UTC)}
	mc := cache.NewMemoryCache(cache.WithClock(clock.Now))
	fc := newFakeCompute(echoResult)
	r, _ := New(fc.Compute, WithCache(mc))

	_, _ = r.Submit(context.Background(), "ns", 1, time.Second)
	waitUnits(t, r)
	clock.Advance(time.Second)

	stats := r.CacheStats(context.Background())
	if stats.Swept != 1 || stats.Entries != 0 {
		t.Errorf("Swept=%d Entries=%d, want 1 and 0", stats.Swept, stats.Entries)
	}
}

func TestStuck(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 26, 9, 0, 0, 0, time.UTC)}
	reg := job.NewRegistry(job.Config{Now: clock.Now})
	fc := newFakeCompute(echoResult).hold()
	r, _ := newTestRunner(t, fc, WithRegistry(reg))

	id, _ := r.Submit(context.Background(), "ns", 1, time.Minute)
	clock.Advance(20 * time.Minute)

	stuck := r.Stuck(15 * time.Minute)
	if len(stuck) != 1 || stuck[0].ID != id {
		t.Fatalf("Stuck() = %v, want [%s]", stuck, id)
	}
}

func TestClose_WaitsForInflight(t *testing.T) {
	fc := newFakeCompute(echoResult).hold()
	r, _ := newTestRunner(t, fc)

	id, _ := r.Submit(context.Background(), "ns", 1, time.Minute)
	<-fc.started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := r.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Close() with unit running = %v, want DeadlineExceeded", err)
	}

	close(fc.release)
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if st := mustPoll(t, r, id); st.State != StateCompleted {
		t.Errorf("State = %q, want completed", st.State)
	}
}

func TestSubmit_LogsDegradedKey(t *testing.T) {
	var logs bytes.Buffer
	mw := observe.NewMiddleware(nil, nil, observe.NewLoggerWithWriter("warn", &logs))
	r, _ := newTestRunner(t, newFakeCompute(echoResult), WithMiddleware(mw))

	_, _ = r.Submit(context.Background(), "ns", map[string]any{"f": func() {}}, time.Minute)
	waitUnits(t, r)

	if !bytes.Contains(logs.Bytes(), []byte("degraded key")) {
		t.Errorf("expected degraded key warning, got %s", logs.String())
	}
}
