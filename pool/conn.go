// Package pool implements the pooled data source (§4.5): a synchronous, bounded
// connection pool with idle/active partitioning, overdue checkout reclamation,
// optional liveness ping, and bad-connection tolerance.
package pool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// RawConnection is the minimal surface the pool needs from an underlying database
// connection. database/sql/driver.Conn has no Rollback or context-aware Ping at the
// connection level (those live on driver.Tx and driver.Pinger respectively, and
// database/sql.DB already pools on its own terms) so the pool is written against this
// narrower, pool-owned interface instead; SQLConn in sqlconn.go adapts a
// database/sql.Conn to it.
type RawConnection interface {
	Ping(ctx context.Context) error
	// Rollback undoes any open transaction. A connection that is already
	// auto-committing (or has nothing open) returns nil.
	Rollback() error
	Close() error
}

// ConnectionFactory opens a fresh RawConnection. Implementations typically close over
// a DSN and driver name; see sqlconn.go's SQLConnFactory for the database/sql-backed
// concrete factory.
type ConnectionFactory interface {
	Open(ctx context.Context) (RawConnection, error)
	// TypeCode identifies the credentials/target this factory connects to, used by
	// PooledDataSource to detect a returned connection that no longer belongs to the
	// pool's current configuration (§4.5's "Type-code").
	TypeCode() string
}

// TypeCode hashes the pieces of connection identity (url, user, password) the way
// §4.5 specifies: "hash of url∥user∥password".
func TypeCode(url, user, password string) string {
	sum := sha256.Sum256([]byte(url + "\x00" + user + "\x00" + password))
	return hex.EncodeToString(sum[:])
}

// PooledConnection wraps a raw connection plus the bookkeeping the pool needs (§3).
// Once a wrapper is invalidated (by recycle, Put or ForceCloseAll), invalidated
// reports true even if the wrapped raw connection is still open — §4.5's
// checkout/return algorithms invalidate the *previous* wrapper whenever a raw
// connection is recycled into a new one, so the pool discards it on Put and
// validateLocked rejects it. Invalidation does not guard the Raw field: a caller still
// holding a stale wrapper can keep using its raw connection, sharing it with whoever
// holds the new wrapper.
type PooledConnection struct {
	ID         string
	Raw        RawConnection
	TypeCode   string
	CreatedAt  time.Time
	LastUsedAt time.Time
	CheckedOutAt time.Time
	valid      bool
}

// newPooledConnection wraps raw as a fresh, valid connection created just now.
func newPooledConnection(raw RawConnection, typeCode string) *PooledConnection {
	now := time.Now()
	return &PooledConnection{
		ID:         uuid.NewString(),
		Raw:        raw,
		TypeCode:   typeCode,
		CreatedAt:  now,
		LastUsedAt: now,
		valid:      true,
	}
}

// recycle wraps the same raw connection in a brand new PooledConnection — used both by
// overdue reclamation and by push's "neutralize stale references" step — inheriting
// creation/last-used timestamps from the connection being replaced, and invalidates pc.
func (pc *PooledConnection) recycle() *PooledConnection {
	next := &PooledConnection{
		ID:         uuid.NewString(),
		Raw:        pc.Raw,
		TypeCode:   pc.TypeCode,
		CreatedAt:  pc.CreatedAt,
		LastUsedAt: pc.LastUsedAt,
		valid:      true,
	}
	pc.valid = false
	return next
}

// invalidated reports whether pc has been explicitly invalidated. The idle-time/ping
// liveness check lives in DataSource.validateLocked, which calls this first.
func (pc *PooledConnection) invalidated() bool { return !pc.valid }

func (pc *PooledConnection) checkoutDuration() time.Duration {
	if pc.CheckedOutAt.IsZero() {
		return 0
	}
	return time.Since(pc.CheckedOutAt)
}

func (pc *PooledConnection) idleDuration() time.Duration {
	return time.Since(pc.LastUsedAt)
}

func (pc *PooledConnection) String() string {
	return "PooledConnection{" + pc.ID + "}"
}
