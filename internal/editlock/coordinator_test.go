package editlock

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/VenkatGGG/admin-console/internal/catalog"
	"github.com/VenkatGGG/admin-console/internal/gateway"
)

type fakeLocks struct {
	mu           sync.Mutex
	acquireErr   error
	releaseErr   error
	maintainErrs []error
	acquired     []string
	released     []string
	maintains    int
	maintained   chan string
	onAcquire    func()
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{maintained: make(chan string, 16)}
}

func (f *fakeLocks) AcquireLock(_ context.Context, id string) error {
	f.mu.Lock()
	f.acquired = append(f.acquired, id)
	err, hook := f.acquireErr, f.onAcquire
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeLocks) releasedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.released...)
}

func (f *fakeLocks) ReleaseLock(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, id)
	return f.releaseErr
}

func (f *fakeLocks) MaintainLock(_ context.Context, id string) error {
	f.mu.Lock()
	f.maintains++
	var err error
	if len(f.maintainErrs) > 0 {
		err = f.maintainErrs[0]
		f.maintainErrs = f.maintainErrs[1:]
	}
	f.mu.Unlock()
	f.maintained <- id
	return err
}

func (f *fakeLocks) maintainCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maintains
}

type actor string

func (a actor) ActorID() string { return string(a) }

var conflictErr = &gateway.Error{Kind: gateway.ErrConflict, Op: "maintain lock", StatusCode: 409, Message: "Edit access has expired"}

func newTestCoordinator(t *testing.T, locks *fakeLocks) (*Coordinator, *testclock.Clock) {
	t.Helper()
	clk := testclock.NewClock(time.Date(2026, 2, 11, 9, 0, 0, 0, time.UTC))
	coord, err := New(Config{
		Gateway:  locks,
		Identity: actor("usr_1"),
		Clock:    clk,
		Logger:   log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	t.Cleanup(coord.Close)
	return coord, clk
}

func waitMaintain(t *testing.T, locks *fakeLocks, want string) {
	t.Helper()
	select {
	case got := <-locks.maintained:
		if got != want {
			t.Fatalf("expected maintain for %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for maintain call on %q", want)
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestAcquireThenReleaseLeavesNothingHeld(t *testing.T) {
	locks := newFakeLocks()
	coord, _ := newTestCoordinator(t, locks)
	ctx := context.Background()

	for _, id := range []string{"ev-1", "ev-2", "ev-1"} {
		grant, err := coord.Acquire(ctx, id)
		if err != nil {
			t.Fatalf("acquire %s: %v", id, err)
		}
		if !grant.Granted {
			t.Fatalf("expected %s to be granted", id)
		}
	}
	if got := coord.HeldResourceIDs(); len(got) != 2 || got[0] != "ev-1" || got[1] != "ev-2" {
		t.Fatalf("unexpected held ids: %v", got)
	}

	coord.Release(ctx, "ev-1")
	coord.Release(ctx, "ev-2")

	if got := coord.HeldResourceIDs(); len(got) != 0 {
		t.Fatalf("expected no held ids after release, got %v", got)
	}
	if len(locks.released) != 2 {
		t.Fatalf("expected two release calls, got %v", locks.released)
	}
}

func TestAcquireConflictIsDeniedWithoutError(t *testing.T) {
	locks := newFakeLocks()
	locks.acquireErr = &gateway.Error{Kind: gateway.ErrConflict, Op: "acquire lock", StatusCode: 409, Message: "Event is currently being edited by another user"}
	coord, _ := newTestCoordinator(t, locks)

	grant, err := coord.Acquire(context.Background(), "ev-1")
	if err != nil {
		t.Fatalf("conflict should not surface as error: %v", err)
	}
	if grant.Granted {
		t.Fatalf("expected denied grant")
	}
	if grant.Reason != "Event is currently being edited by another user" {
		t.Fatalf("unexpected reason %q", grant.Reason)
	}
	if coord.IsHeld("ev-1") {
		t.Fatalf("denied resource must not be held")
	}
	if coord.LastError() != "" {
		t.Fatalf("denied acquire must not record an error, got %q", coord.LastError())
	}
}

func TestAcquireTransportErrorIsRecordedAndReturned(t *testing.T) {
	locks := newFakeLocks()
	locks.acquireErr = &gateway.Error{Kind: gateway.ErrTransport, Op: "acquire lock", Err: errors.New("connection refused")}
	coord, _ := newTestCoordinator(t, locks)

	_, err := coord.Acquire(context.Background(), "ev-1")
	if !errors.Is(err, gateway.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if coord.LastError() == "" {
		t.Fatalf("expected last error to be recorded")
	}
	if coord.IsHeld("ev-1") {
		t.Fatalf("failed acquire must not be held")
	}

	coord.ClearError()
	if coord.LastError() != "" {
		t.Fatalf("expected cleared error")
	}
}

func TestRenewalTickKeepsLeaseAndReschedules(t *testing.T) {
	locks := newFakeLocks()
	coord, clk := newTestCoordinator(t, locks)

	if _, err := coord.Acquire(context.Background(), "ev-1"); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := clk.WaitAdvance(DefaultRenewInterval, time.Second, 1); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		waitMaintain(t, locks, "ev-1")
		if !coord.IsHeld("ev-1") {
			t.Fatalf("lease should survive successful renewal %d", i)
		}
	}
}

func TestRenewalConflictTearsDownLease(t *testing.T) {
	locks := newFakeLocks()
	locks.maintainErrs = []error{conflictErr}
	coord, clk := newTestCoordinator(t, locks)

	grant, err := coord.Acquire(context.Background(), "ev-1")
	if err != nil || !grant.Granted {
		t.Fatalf("acquire: grant=%+v err=%v", grant, err)
	}

	if err := clk.WaitAdvance(DefaultRenewInterval, time.Second, 1); err != nil {
		t.Fatalf("advance: %v", err)
	}
	waitMaintain(t, locks, "ev-1")
	waitUntil(t, func() bool { return !coord.IsHeld("ev-1") })

	for _, id := range coord.HeldResourceIDs() {
		if id == "ev-1" {
			t.Fatalf("ev-1 still held after lost renewal")
		}
	}
	if err := clk.WaitAdvance(DefaultRenewInterval, 50*time.Millisecond, 1); err == nil {
		t.Fatalf("expected no renewal timer after teardown")
	}
	if got := locks.maintainCount(); got != 1 {
		t.Fatalf("expected exactly one maintain call, got %d", got)
	}
}

func TestRenewalTransportFailureFailsClosed(t *testing.T) {
	locks := newFakeLocks()
	locks.maintainErrs = []error{&gateway.Error{Kind: gateway.ErrTransport, Op: "maintain lock", Err: errors.New("timeout")}}
	coord, clk := newTestCoordinator(t, locks)

	if _, err := coord.Acquire(context.Background(), "ev-1"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := clk.WaitAdvance(DefaultRenewInterval, time.Second, 1); err != nil {
		t.Fatalf("advance: %v", err)
	}
	waitMaintain(t, locks, "ev-1")
	waitUntil(t, func() bool { return len(coord.HeldResourceIDs()) == 0 })
}

func TestReleaseCancelsRenewalEvenWhenServerCallFails(t *testing.T) {
	locks := newFakeLocks()
	locks.releaseErr = &gateway.Error{Kind: gateway.ErrTransport, Op: "release lock", Err: errors.New("network down")}
	coord, clk := newTestCoordinator(t, locks)
	ctx := context.Background()

	if _, err := coord.Acquire(ctx, "ev-1"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	coord.Release(ctx, "ev-1")

	if coord.IsHeld("ev-1") {
		t.Fatalf("release must tear down local lease")
	}
	if coord.LastError() != "" {
		t.Fatalf("release failure must be swallowed, got %q", coord.LastError())
	}
	if err := clk.WaitAdvance(DefaultRenewInterval, 50*time.Millisecond, 1); err == nil {
		t.Fatalf("expected renewal timer to be cancelled")
	}
	if got := locks.maintainCount(); got != 0 {
		t.Fatalf("expected no maintain calls after release, got %d", got)
	}
}

func TestCloseStopsEveryRenewal(t *testing.T) {
	locks := newFakeLocks()
	coord, clk := newTestCoordinator(t, locks)
	ctx := context.Background()

	for _, id := range []string{"ev-1", "ev-2"} {
		if _, err := coord.Acquire(ctx, id); err != nil {
			t.Fatalf("acquire %s: %v", id, err)
		}
	}
	coord.Close()

	if got := coord.HeldResourceIDs(); len(got) != 0 {
		t.Fatalf("expected no leases after close, got %v", got)
	}
	if err := clk.WaitAdvance(DefaultRenewInterval, 50*time.Millisecond, 1); err == nil {
		t.Fatalf("expected no timers after close")
	}
	if _, err := coord.Acquire(ctx, "ev-3"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if len(locks.released) != 0 {
		t.Fatalf("close must not call the server, got releases %v", locks.released)
	}
}

func TestIsLockedByOther(t *testing.T) {
	coord, _ := newTestCoordinator(t, newFakeLocks())

	cases := []struct {
		holder string
		want   bool
	}{
		{holder: "", want: false},
		{holder: "usr_1", want: false},
		{holder: "usr_2", want: true},
	}
	for _, tc := range cases {
		event := catalog.Event{ID: "ev-1", LockInfo: catalog.LockInfo{EditingBy: tc.holder}}
		if got := coord.IsLockedByOther(event); got != tc.want {
			t.Fatalf("holder=%q: expected %v, got %v", tc.holder, tc.want, got)
		}
	}
}

func TestConfigValidateRequiresRenewalMargin(t *testing.T) {
	locks := newFakeLocks()
	if _, err := New(Config{Gateway: locks, RenewInterval: 4*time.Minute + 30*time.Second, LockTimeout: 5 * time.Minute}); err == nil {
		t.Fatalf("expected thin renewal margin to be rejected")
	}
	if _, err := New(Config{Gateway: locks, RenewInterval: 4 * time.Minute, LockTimeout: 5 * time.Minute}); err != nil {
		t.Fatalf("expected 20%% margin to be accepted: %v", err)
	}
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected missing gateway to be rejected")
	}
}

func TestMetricsTrackAcquireOutcomes(t *testing.T) {
	locks := newFakeLocks()
	metrics := NewMetrics(prometheus.NewRegistry())
	coord, err := New(Config{
		Gateway: locks,
		Clock:   testclock.NewClock(time.Now()),
		Logger:  log.New(io.Discard, "", 0),
		Metrics: metrics,
	})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	defer coord.Close()
	ctx := context.Background()

	if _, err := coord.Acquire(ctx, "ev-1"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	locks.acquireErr = conflictErr
	if _, err := coord.Acquire(ctx, "ev-2"); err != nil {
		t.Fatalf("denied acquire: %v", err)
	}

	if got := testutil.ToFloat64(metrics.AcquireTotal.WithLabelValues("granted")); got != 1 {
		t.Fatalf("expected 1 granted, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.AcquireTotal.WithLabelValues("denied")); got != 1 {
		t.Fatalf("expected 1 denied, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.LeasesHeld); got != 1 {
		t.Fatalf("expected 1 lease held, got %v", got)
	}
}

func TestReacquireConflictDropsExistingLease(t *testing.T) {
	locks := newFakeLocks()
	coord, clk := newTestCoordinator(t, locks)
	ctx := context.Background()

	if grant, err := coord.Acquire(ctx, "ev-1"); err != nil || !grant.Granted {
		t.Fatalf("expected first acquire granted, got %+v err=%v", grant, err)
	}

	locks.mu.Lock()
	locks.acquireErr = &gateway.Error{Kind: gateway.ErrConflict, Op: "acquire lock", StatusCode: 409, Message: "being edited by usr_2"}
	locks.mu.Unlock()

	grant, err := coord.Acquire(ctx, "ev-1")
	if err != nil {
		t.Fatalf("expected denial without error, got %v", err)
	}
	if grant.Granted {
		t.Fatalf("expected denied grant")
	}
	if coord.IsHeld("ev-1") || len(coord.HeldResourceIDs()) != 0 {
		t.Fatalf("denied id must not stay held, got %v", coord.HeldResourceIDs())
	}
	if err := clk.WaitAdvance(DefaultRenewInterval, 50*time.Millisecond, 1); err == nil {
		t.Fatalf("expected the renewal timer to be gone")
	}
	if got := locks.maintainCount(); got != 0 {
		t.Fatalf("expected no maintain calls, got %d", got)
	}
}

func TestCloseDuringAcquireReleasesServerLock(t *testing.T) {
	locks := newFakeLocks()
	coord, _ := newTestCoordinator(t, locks)
	locks.onAcquire = coord.Close

	_, err := coord.Acquire(context.Background(), "ev-1")
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if coord.IsHeld("ev-1") {
		t.Fatalf("closed coordinator must not hold ev-1")
	}
	if got := locks.releasedIDs(); len(got) != 1 || got[0] != "ev-1" {
		t.Fatalf("expected the granted server lock to be released, got %v", got)
	}
}
