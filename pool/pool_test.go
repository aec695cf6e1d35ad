package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     int64
	closed bool
	pingErr error
}

func (c *fakeConn) Ping(ctx context.Context) error { return c.pingErr }
func (c *fakeConn) Rollback() error                { return nil }
func (c *fakeConn) Close() error                   { c.closed = true; return nil }

type fakeFactory struct {
	next     int64
	typeCode string
	opened   int64
}

func (f *fakeFactory) Open(ctx context.Context) (RawConnection, error) {
	atomic.AddInt64(&f.opened, 1)
	return &fakeConn{id: atomic.AddInt64(&f.next, 1)}, nil
}

func (f *fakeFactory) TypeCode() string { return f.typeCode }

func newTestPool(cfg Config) (*DataSource, *fakeFactory) {
	f := &fakeFactory{typeCode: "t1"}
	return New(f, cfg), f
}

func TestGetCreatesUpToMaxActive(t *testing.T) {
	ds, f := newTestPool(Config{MaxActive: 2, MaxIdle: 2})

	c1, err := ds.Get(context.Background())
	require.NoError(t, err)
	c2, err := ds.Get(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, c1.ID, c2.ID)
	assert.EqualValues(t, 2, f.opened)
	snap := ds.Snapshot()
	assert.Equal(t, 2, snap.Active)
	assert.Equal(t, 0, snap.Idle)
}

func TestPutReturnsToIdleAndGetReusesIt(t *testing.T) {
	ds, f := newTestPool(Config{MaxActive: 1, MaxIdle: 1})

	c1, err := ds.Get(context.Background())
	require.NoError(t, err)
	ds.Put(c1)

	c2, err := ds.Get(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, f.opened, "second checkout should reuse the idle connection, not open a new one")
	_ = c2
}

func TestOverdueReclamation(t *testing.T) {
	ds, _ := newTestPool(Config{MaxActive: 1, MaxIdle: 1, MaxCheckoutTime: 20 * time.Millisecond, TimeToWait: 10 * time.Millisecond})

	a, err := ds.Get(context.Background())
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	b, err := ds.Get(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.invalidated(), "A's wrapper must be invalidated once B reclaims its connection")

	snap := ds.Snapshot()
	assert.EqualValues(t, 1, snap.ClaimedOverdueCount)
}

func TestPoolConservationUnderConcurrency(t *testing.T) {
	ds, _ := newTestPool(Config{MaxActive: 3, MaxIdle: 3, TimeToWait: 50 * time.Millisecond})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := ds.Get(context.Background())
			if err != nil {
				errs <- err
				return
			}
			time.Sleep(time.Millisecond)
			ds.Put(c)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected checkout error: %v", err)
	}

	snap := ds.Snapshot()
	assert.LessOrEqual(t, snap.Active+snap.Idle, 3)
	assert.LessOrEqual(t, snap.Idle, 3)
}

func TestValidateRejectsInvalidatedConnection(t *testing.T) {
	ds, _ := newTestPool(Config{MaxActive: 1, MaxIdle: 1})
	c, err := ds.Get(context.Background())
	require.NoError(t, err)
	c.valid = false
	assert.False(t, ds.validateLocked(c))
}

func TestForceCloseAllClosesEverything(t *testing.T) {
	ds, _ := newTestPool(Config{MaxActive: 2, MaxIdle: 2})
	c1, err := ds.Get(context.Background())
	require.NoError(t, err)
	ds.Put(c1)
	_, err = ds.Get(context.Background())
	require.NoError(t, err)

	ds.ForceCloseAll()

	snap := ds.Snapshot()
	assert.Equal(t, 0, snap.Active)
	assert.Equal(t, 0, snap.Idle)
}
