package services

import (
	"sync"
	"time"
)

// CancelFunc stops a scheduled task. Safe to call more than once.
type CancelFunc func()

// Scheduler runs recurring background tasks.
type Scheduler interface {
	// Every runs fn on each tick of interval until the returned CancelFunc is called.
	// The first run happens after one interval.
	Every(interval time.Duration, fn func()) CancelFunc
}

type tickerScheduler struct{}

// NewScheduler returns a Scheduler backed by time.Ticker.
func NewScheduler() Scheduler {
	return tickerScheduler{}
}

func (tickerScheduler) Every(interval time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(interval)
	stop := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				select {
				case <-stop:
					return
				default:
				}
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stop) })
	}
}
