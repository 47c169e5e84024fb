package shell

import (
	"log"
	"sync"
	"time"
)

// Lifecycle counts open windows and signals Done once the count has been
// zero for the grace period. A window that reopens within the grace period
// (a page reload) keeps the process alive.
type Lifecycle struct {
	mu         sync.Mutex
	open       int
	quitOnLast bool
	grace      time.Duration
	timer      *time.Timer
	generation uint64
	done       chan struct{}
	finished   bool
}

// NewLifecycle creates a lifecycle. With quitOnLast false Done never fires.
func NewLifecycle(quitOnLast bool, grace time.Duration) *Lifecycle {
	return &Lifecycle{
		quitOnLast: quitOnLast,
		grace:      grace,
		done:       make(chan struct{}),
	}
}

// Opened records a window showing the page
func (l *Lifecycle) Opened() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.open++
	l.generation++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

// Closed records a window going away
func (l *Lifecycle) Closed() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.open > 0 {
		l.open--
	}
	if l.open > 0 || !l.quitOnLast || l.finished {
		return
	}

	l.generation++
	gen := l.generation
	if l.timer != nil {
		l.timer.Stop()
	}
	log.Printf("[Lifecycle] Last window closed, quitting in %v unless one reopens", l.grace)
	l.timer = time.AfterFunc(l.grace, func() { l.expire(gen) })
}

// Open returns the current window count
func (l *Lifecycle) Open() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

// Done is closed when the application should quit
func (l *Lifecycle) Done() <-chan struct{} {
	return l.done
}

func (l *Lifecycle) expire(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// superseded by a later open or close
	if gen != l.generation || l.open > 0 || l.finished {
		return
	}
	l.finished = true
	close(l.done)
}
