// Package editlock keeps the client's view of which remote resources it holds
// an exclusive edit lease on, and renews those leases until they are released
// or lost.
package editlock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/VenkatGGG/admin-console/internal/gateway"
)

const (
	DefaultRenewInterval = 4 * time.Minute
	DefaultLockTimeout   = 5 * time.Minute
)

var ErrClosed = errors.New("edit lock coordinator closed")

// Gateway is the subset of the remote contract the coordinator drives. A
// conflict must be reported as gateway.ErrConflict.
type Gateway interface {
	AcquireLock(ctx context.Context, id string) error
	ReleaseLock(ctx context.Context, id string) error
	MaintainLock(ctx context.Context, id string) error
}

type Identity interface {
	ActorID() string
}

type LockHolder interface {
	LockHolder() string
}

type Config struct {
	Gateway  Gateway
	Identity Identity
	Clock    clock.Clock
	Logger   *log.Logger
	Metrics  *Metrics

	// RenewInterval must leave at least a 20% margin below LockTimeout, the
	// server side expiry of an unrenewed lock.
	RenewInterval time.Duration
	LockTimeout   time.Duration
}

func (c Config) Validate() error {
	if c.Gateway == nil {
		return errors.New("gateway is required")
	}
	if c.RenewInterval <= 0 {
		return errors.New("renew interval must be positive")
	}
	if c.LockTimeout <= 0 {
		return errors.New("lock timeout must be positive")
	}
	if c.RenewInterval*5 > c.LockTimeout*4 {
		return fmt.Errorf("renew interval %s leaves less than 20%% margin below lock timeout %s", c.RenewInterval, c.LockTimeout)
	}
	return nil
}

// Grant is the outcome of an acquire attempt. A denied grant is not an error.
type Grant struct {
	Granted bool
	Reason  string
}

type lease struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

func (l *lease) stop() {
	l.cancel()
	<-l.done
}

type Coordinator struct {
	cfg Config

	mu      sync.Mutex
	leases  map[string]*lease
	lastErr string
	closed  bool
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.RenewInterval == 0 {
		cfg.RenewInterval = DefaultRenewInterval
	}
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{
		cfg:    cfg,
		leases: make(map[string]*lease),
	}, nil
}

// Acquire asks the server for the edit lock on id. On success the lease is
// recorded and renewed every RenewInterval until released or lost.
func (c *Coordinator) Acquire(ctx context.Context, id string) (Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Grant{}, errors.New("resource id is required")
	}
	if c.isClosed() {
		return Grant{}, ErrClosed
	}

	if err := c.cfg.Gateway.AcquireLock(ctx, id); err != nil {
		if gateway.IsConflict(err) {
			// Another actor holds id; no local lease may outlive that answer.
			c.discard(id)
			c.cfg.Metrics.acquired("denied")
			reason := gateway.Message(err)
			if reason == "" {
				reason = "resource is currently being edited by another user"
			}
			return Grant{Granted: false, Reason: reason}, nil
		}
		c.cfg.Metrics.acquired("error")
		c.setError(err, "failed to request edit access")
		return Grant{}, err
	}

	if err := c.hold(id); err != nil {
		if relErr := c.cfg.Gateway.ReleaseLock(ctx, id); relErr != nil {
			c.cfg.Logger.Printf("edit lease release after close failed: id=%s err=%v", id, relErr)
		}
		return Grant{}, err
	}
	c.cfg.Metrics.acquired("granted")
	c.cfg.Logger.Printf("edit lease granted: id=%s renew_every=%s", id, c.cfg.RenewInterval)
	return Grant{Granted: true}, nil
}

// Release gives up the lease on id. Local state is torn down before the
// server is told, and a failing release call is only logged.
func (c *Coordinator) Release(ctx context.Context, id string) {
	id = strings.TrimSpace(id)
	c.discard(id)

	if err := c.cfg.Gateway.ReleaseLock(ctx, id); err != nil {
		c.cfg.Metrics.released("error")
		c.cfg.Logger.Printf("edit lease release failed: id=%s err=%v", id, err)
		return
	}
	c.cfg.Metrics.released("released")
}

// ReleaseAll releases every lease currently held.
func (c *Coordinator) ReleaseAll(ctx context.Context) {
	for _, id := range c.HeldResourceIDs() {
		c.Release(ctx, id)
	}
}

// Close stops every renewal task without contacting the server.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	leases := make([]*lease, 0, len(c.leases))
	for id, l := range c.leases {
		leases = append(leases, l)
		delete(c.leases, id)
	}
	c.mu.Unlock()

	for _, l := range leases {
		l.stop()
	}
	c.cfg.Metrics.held(0)
}

func (c *Coordinator) HeldResourceIDs() []string {
	c.mu.Lock()
	ids := make([]string, 0, len(c.leases))
	for id := range c.leases {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	sort.Strings(ids)
	return ids
}

func (c *Coordinator) IsHeld(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.leases[strings.TrimSpace(id)]
	return ok
}

// IsLockedByOther reports whether item carries a lock holder other than the
// current actor.
func (c *Coordinator) IsLockedByOther(item LockHolder) bool {
	holder := strings.TrimSpace(item.LockHolder())
	if holder == "" {
		return false
	}
	actor := ""
	if c.cfg.Identity != nil {
		actor = strings.TrimSpace(c.cfg.Identity.ActorID())
	}
	return holder != actor
}

func (c *Coordinator) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Coordinator) ClearError() {
	c.mu.Lock()
	c.lastErr = ""
	c.mu.Unlock()
}

func (c *Coordinator) hold(id string) error {
	ctx, cancel := context.WithCancel(context.Background())
	l := &lease{id: id, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return ErrClosed
	}
	prev := c.leases[id]
	c.leases[id] = l
	held := len(c.leases)
	c.mu.Unlock()

	if prev != nil {
		prev.stop()
	}
	c.cfg.Metrics.held(held)
	go c.renew(ctx, l)
	return nil
}

func (c *Coordinator) renew(ctx context.Context, l *lease) {
	defer close(l.done)

	timer := c.cfg.Clock.NewTimer(c.cfg.RenewInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
		}

		err := c.cfg.Gateway.MaintainLock(ctx, l.id)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if gateway.IsConflict(err) {
				c.cfg.Metrics.renewed("lost")
				c.cfg.Logger.Printf("edit lease expired on server: id=%s", l.id)
			} else {
				c.cfg.Metrics.renewed("error")
				c.cfg.Logger.Printf("edit lease renewal failed, dropping lease: id=%s err=%v", l.id, err)
			}
			c.drop(l)
			return
		}
		c.cfg.Metrics.renewed("renewed")
		timer.Reset(c.cfg.RenewInterval)
	}
}

// discard forgets the lease on id and waits for its renewal task to stop.
func (c *Coordinator) discard(id string) {
	c.mu.Lock()
	l := c.leases[id]
	delete(c.leases, id)
	held := len(c.leases)
	c.mu.Unlock()

	if l != nil {
		l.stop()
	}
	c.cfg.Metrics.held(held)
}

// drop forgets l unless it has already been replaced by a newer lease.
func (c *Coordinator) drop(l *lease) {
	c.mu.Lock()
	if c.leases[l.id] == l {
		delete(c.leases, l.id)
	}
	held := len(c.leases)
	c.mu.Unlock()
	c.cfg.Metrics.held(held)
}

func (c *Coordinator) setError(err error, fallback string) {
	msg := gateway.Message(err)
	if strings.TrimSpace(msg) == "" {
		msg = fallback
	}
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
