package cache

import (
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduledFlushCache clears delegate on a cron schedule of "@every <interval>",
// inserted into the chain when a namespace's <cache> declares flushInterval > 0
// (§4.4). It owns its own single-entry cron.Cron so Stop can release it without
// touching any other namespace's schedule.
type ScheduledFlushCache struct {
	delegate Cache
	cron     *cron.Cron
	entryID  cron.EntryID
}

// NewScheduledFlushCache wraps delegate and starts a background flush every interval.
func NewScheduledFlushCache(delegate Cache, interval time.Duration) *ScheduledFlushCache {
	c := cron.New()
	sched := &ScheduledFlushCache{delegate: delegate, cron: c}
	id, err := c.AddFunc("@every "+interval.String(), func() {
		log.WithField("cache", delegate.ID()).Debug("scheduled flush")
		delegate.Clear()
	})
	if err != nil {
		log.WithError(err).Warn("scheduled flush cache: invalid interval, flush disabled")
	}
	sched.entryID = id
	c.Start()
	return sched
}

func (c *ScheduledFlushCache) ID() string { return c.delegate.ID() }

func (c *ScheduledFlushCache) Put(key, value any) { c.delegate.Put(key, value) }
func (c *ScheduledFlushCache) Get(key any) (any, bool) { return c.delegate.Get(key) }
func (c *ScheduledFlushCache) Remove(key any)          { c.delegate.Remove(key) }
func (c *ScheduledFlushCache) Clear()                  { c.delegate.Clear() }
func (c *ScheduledFlushCache) Size() int               { return c.delegate.Size() }

// Stop cancels the flush schedule. Callers that discard a Configuration holding
// scheduled caches should call Stop on each to release the cron goroutine.
func (c *ScheduledFlushCache) Stop() {
	c.cron.Remove(c.entryID)
	c.cron.Stop()
}
