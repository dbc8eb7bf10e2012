package ledger

import (
	"sync"
	"time"
)

const (
	DefaultLockTimeout   = 5 * time.Second
	DefaultSweepInterval = 1 * time.Second
)

// AdvisoryLocks is a best-effort, timeout-bounded mutual-exclusion registry
// for auxiliary resources. It is NOT the overbooking guarantee; only the
// ledger's conditional update is. A caller that cannot acquire a lock fails
// immediately, and a background sweep evicts entries left behind by crashed
// holders.
type AdvisoryLocks struct {
	mu      sync.Mutex
	held    map[string]time.Time
	timeout time.Duration
	sweep   time.Duration
	done    chan struct{}
	once    sync.Once
	now     func() time.Time
}

func NewAdvisoryLocks(timeout, sweepInterval time.Duration) *AdvisoryLocks {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &AdvisoryLocks{
		held:    make(map[string]time.Time),
		timeout: timeout,
		sweep:   sweepInterval,
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

// Acquire succeeds only when no unexpired holder exists. An expired entry is
// overwritten rather than waited on.
func (l *AdvisoryLocks) Acquire(resourceID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if acquiredAt, ok := l.held[resourceID]; ok {
		if l.now().Sub(acquiredAt) < l.timeout {
			return false
		}
	}
	l.held[resourceID] = l.now()
	return true
}

func (l *AdvisoryLocks) Release(resourceID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, resourceID)
}

func (l *AdvisoryLocks) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// Start launches the periodic sweep. It runs until Stop.
func (l *AdvisoryLocks) Start() {
	go func() {
		ticker := time.NewTicker(l.sweep)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.evictExpired()
			case <-l.done:
				return
			}
		}
	}()
}

func (l *AdvisoryLocks) Stop() {
	l.once.Do(func() { close(l.done) })
}

func (l *AdvisoryLocks) evictExpired() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for resource, acquiredAt := range l.held {
		if now.Sub(acquiredAt) >= l.timeout {
			delete(l.held, resource)
		}
	}
}
