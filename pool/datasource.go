package pool

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zsy619/mapcore/errs"
)

var log = logrus.WithField("component", "pool")

// Config holds the pool dimensions and liveness settings named in §4.5, with the
// reference defaults.
type Config struct {
	MaxActive             int           // 10
	MaxIdle               int           // 5
	MaxCheckoutTime       time.Duration // 20s
	TimeToWait            time.Duration // 20s
	MaxLocalBadTolerance  int           // 3
	PingEnabled           bool
	PingQuery             string
	PingNotUsedFor        time.Duration
}

// DefaultConfig returns §4.5's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxActive:            10,
		MaxIdle:              5,
		MaxCheckoutTime:      20 * time.Second,
		TimeToWait:           20 * time.Second,
		MaxLocalBadTolerance: 3,
	}
}

// DataSource is the pooled connection manager: a single mutex serializes every
// mutation, and a condition variable on that same mutex signals returning connections
// to anyone blocked in Get (§5's "single mutual-exclusion lock... single condition
// variable").
type DataSource struct {
	cfg     Config
	factory ConnectionFactory

	mu    sync.Mutex
	cond  *sync.Cond
	state *State
	typeCode string
}

// New builds a DataSource against factory with cfg (zero-value fields fall back to
// DefaultConfig's values).
func New(factory ConnectionFactory, cfg Config) *DataSource {
	def := DefaultConfig()
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = def.MaxActive
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = def.MaxIdle
	}
	if cfg.MaxCheckoutTime <= 0 {
		cfg.MaxCheckoutTime = def.MaxCheckoutTime
	}
	if cfg.TimeToWait <= 0 {
		cfg.TimeToWait = def.TimeToWait
	}
	if cfg.MaxLocalBadTolerance <= 0 {
		cfg.MaxLocalBadTolerance = def.MaxLocalBadTolerance
	}

	ds := &DataSource{cfg: cfg, factory: factory, state: newState(), typeCode: factory.TypeCode()}
	ds.cond = sync.NewCond(&ds.mu)
	return ds
}

// Snapshot returns a point-in-time view of the pool's counters.
func (ds *DataSource) Snapshot() Snapshot {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.state.snapshot()
}

// waitForReturn blocks on ds.cond for up to timeout, waking early if push signals.
// Must be called with ds.mu held; returns with ds.mu held, matching sync.Cond.Wait.
//
// sync.Cond has no built-in wait-with-timeout (unlike a Java Condition's awaitNanos),
// so a one-shot timer drives a matching Broadcast when the deadline elapses — the
// caller always re-checks pool state after waking, so a spurious or timeout-driven
// wakeup is harmless.
func (ds *DataSource) waitForReturn(timeout time.Duration) {
	timer := time.AfterFunc(timeout, func() {
		ds.mu.Lock()
		ds.cond.Broadcast()
		ds.mu.Unlock()
	})
	defer timer.Stop()
	ds.cond.Wait()
}

// Get implements the checkout algorithm (pop, §4.5). ctx cancellation is checked once
// per loop iteration — Go's context is the idiomatic stand-in for the reference
// design's thread-interrupt flag, but sync.Cond.Wait itself cannot be preempted
// mid-wait without additional goroutine plumbing the pool does not need here, since a
// wait is bounded by TimeToWait regardless.
func (ds *DataSource) Get(ctx context.Context) (*PooledConnection, error) {
	start := time.Now()
	localBadCount := 0
	hadToWaitRecorded := false

	ds.mu.Lock()
	defer ds.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return nil, errs.NewConnection("checkout interrupted: %v", err)
		}

		var candidate *PooledConnection

		if pc, ok := ds.state.popIdle(); ok {
			candidate = pc
		} else if ds.state.ActiveCount() < ds.cfg.MaxActive {
			pc, err := ds.openNew(ctx)
			if err != nil {
				return nil, err
			}
			candidate = pc
		} else if oldest, ok := ds.state.oldestActive(); ok && oldest.checkoutDuration() > ds.cfg.MaxCheckoutTime {
			ds.state.removeActive(oldest)
			ds.state.ClaimedOverdueCount++
			_ = oldest.Raw.Rollback()
			candidate = oldest.recycle()
			log.WithField("connection", oldest.ID).Warn("reclaimed overdue connection")
		} else {
			if !hadToWaitRecorded {
				ds.state.HadToWaitCount++
				hadToWaitRecorded = true
			}
			waitStart := time.Now()
			ds.waitForReturn(ds.cfg.TimeToWait)
			ds.state.AccumulatedWaitTime += time.Since(waitStart)
			continue
		}

		if ds.validateLocked(candidate) {
			_ = candidate.Raw.Rollback()
			candidate.TypeCode = ds.typeCode
			candidate.CheckedOutAt = time.Now()
			candidate.LastUsedAt = candidate.CheckedOutAt
			ds.state.addActive(candidate)
			ds.state.RequestCount++
			ds.state.AccumulatedRequestTime += time.Since(start)
			ds.state.AccumulatedCheckoutTime += candidate.checkoutDuration()
			return candidate, nil
		}

		ds.state.BadConnectionCount++
		localBadCount++
		_ = candidate.Raw.Close()
		if localBadCount > ds.cfg.MaxIdle+ds.cfg.MaxLocalBadTolerance {
			return nil, errs.NewConnection("could not obtain a valid connection after %d bad-connection attempts", localBadCount)
		}
	}
}

func (ds *DataSource) openNew(ctx context.Context) (*PooledConnection, error) {
	raw, err := ds.factory.Open(ctx)
	if err != nil {
		return nil, errs.NewConnection("failed to open connection: %v", err)
	}
	return newPooledConnection(raw, ds.typeCode), nil
}

// validateLocked implements §4.5's liveness rule. Caller holds ds.mu.
func (ds *DataSource) validateLocked(pc *PooledConnection) bool {
	if pc.invalidated() {
		return false
	}
	if !ds.cfg.PingEnabled || ds.cfg.PingNotUsedFor < 0 {
		return true
	}
	if pc.idleDuration() <= ds.cfg.PingNotUsedFor {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pc.Raw.Ping(ctx); err != nil {
		log.WithField("connection", pc.ID).WithError(err).Warn("liveness ping failed")
		return false
	}
	return true
}

// Put implements the return algorithm (push, §4.5).
func (ds *DataSource) Put(pc *PooledConnection) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if !ds.state.removeActive(pc) {
		// already returned, or belonged to a prior forceCloseAll generation.
		return
	}

	if !pc.invalidated() && ds.state.IdleCount() < ds.cfg.MaxIdle && pc.TypeCode == ds.typeCode {
		_ = pc.Raw.Rollback()
		recycled := pc.recycle()
		recycled.LastUsedAt = time.Now()
		ds.state.pushIdle(recycled)
		ds.cond.Signal()
		return
	}

	if pc.invalidated() {
		ds.state.BadConnectionCount++
	} else {
		_ = pc.Raw.Close()
	}
	pc.valid = false
}

// ForceCloseAll drains both collections, closing every raw connection and
// invalidating every wrapper, then recomputes the pool's expected type-code from the
// factory's current credentials (§4.5). Call this from any setter that changes
// driver/url/user/password/auto-commit/isolation/pool-dimension configuration so that
// connections returned afterward are not silently recycled under stale credentials.
func (ds *DataSource) ForceCloseAll() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	drain := func(conns []*PooledConnection) {
		for i := len(conns) - 1; i >= 0; i-- {
			pc := conns[i]
			_ = pc.Raw.Rollback()
			_ = pc.Raw.Close()
			pc.valid = false
		}
	}
	drain(ds.state.activeConnections)
	drain(ds.state.idleConnections)
	ds.state.activeConnections = nil
	ds.state.idleConnections = nil

	ds.typeCode = ds.factory.TypeCode()
	log.Info("pool force-closed all connections")
}
