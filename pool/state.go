package pool

import "time"

// State is the pool's counters plus its two ordered connection collections (§3). It is
// always accessed under DataSource's single mutex; there is no independent locking here.
type State struct {
	idleConnections   []*PooledConnection
	activeConnections []*PooledConnection

	RequestCount          int64
	AccumulatedRequestTime time.Duration
	AccumulatedWaitTime    time.Duration
	AccumulatedCheckoutTime time.Duration
	BadConnectionCount     int64
	HadToWaitCount         int64
	ClaimedOverdueCount    int64
}

func newState() *State {
	return &State{}
}

func (s *State) popIdle() (*PooledConnection, bool) {
	if len(s.idleConnections) == 0 {
		return nil, false
	}
	pc := s.idleConnections[0]
	s.idleConnections = s.idleConnections[1:]
	return pc, true
}

func (s *State) pushIdle(pc *PooledConnection) {
	s.idleConnections = append(s.idleConnections, pc)
}

func (s *State) addActive(pc *PooledConnection) {
	s.activeConnections = append(s.activeConnections, pc)
}

func (s *State) removeActive(pc *PooledConnection) bool {
	for i, c := range s.activeConnections {
		if c == pc {
			s.activeConnections = append(s.activeConnections[:i], s.activeConnections[i+1:]...)
			return true
		}
	}
	return false
}

// oldestActive returns the longest-checked-out active connection (index 0, since
// connections are appended in checkout order).
func (s *State) oldestActive() (*PooledConnection, bool) {
	if len(s.activeConnections) == 0 {
		return nil, false
	}
	return s.activeConnections[0], true
}

func (s *State) ActiveCount() int { return len(s.activeConnections) }
func (s *State) IdleCount() int   { return len(s.idleConnections) }

// Snapshot is a point-in-time, lock-free copy of the pool's counters for metrics/log
// consumption.
type Snapshot struct {
	Active, Idle                                      int
	RequestCount, BadConnectionCount                  int64
	HadToWaitCount, ClaimedOverdueCount                int64
	AverageRequestTime, AverageWaitTime, AverageCheckoutTime time.Duration
}

func (s *State) snapshot() Snapshot {
	avg := func(total time.Duration) time.Duration {
		if s.RequestCount == 0 {
			return 0
		}
		return total / time.Duration(s.RequestCount)
	}
	return Snapshot{
		Active:                len(s.activeConnections),
		Idle:                  len(s.idleConnections),
		RequestCount:          s.RequestCount,
		BadConnectionCount:    s.BadConnectionCount,
		HadToWaitCount:        s.HadToWaitCount,
		ClaimedOverdueCount:   s.ClaimedOverdueCount,
		AverageRequestTime:    avg(s.AccumulatedRequestTime),
		AverageWaitTime:       avg(s.AccumulatedWaitTime),
		AverageCheckoutTime:   avg(s.AccumulatedCheckoutTime),
	}
}
