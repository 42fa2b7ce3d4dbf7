// Package apptimer multiplexes software timers onto one scheduler goroutine,
// the way an RTC-driven application timer library does on a microcontroller.
// Handlers run serially in that goroutine and must not block.
package apptimer

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"boarddemo-go/errcode"
	"boarddemo-go/services/hal/core"
)

type Mode uint8

const (
	SingleShot Mode = iota
	Repeated
)

// Handler receives the context value given to Start.
type Handler func(ctx any)

// ID identifies a created timer. The zero ID is never handed out.
type ID int

type timer struct {
	id     ID
	mode   Mode
	h      Handler
	every  time.Duration
	due    int64
	ctx    any
	active bool
	index  int
}

type timerHeap []*timer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].due < h[j].due }
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x any)        { it := x.(*timer); it.index = len(*h); *h = append(*h, it) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	it.index = -1
	*h = old[:n-1]
	return it
}
func (h timerHeap) Top() *timer {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

type Scheduler struct {
	mu     sync.Mutex
	max    int
	inited bool
	timers []*timer // slot i holds ID i+1
	h      timerHeap
	wake   chan struct{}
	done   chan struct{}
}

// New returns a scheduler with room for maxTimers timers.
func New(maxTimers int) *Scheduler {
	if maxTimers <= 0 {
		maxTimers = 1
	}
	return &Scheduler{
		max:  maxTimers,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Init starts the scheduler goroutine. The low-frequency clock must already
// be running. The goroutine exits when ctx ends.
func (s *Scheduler) Init(ctx context.Context, clk core.LFClock) error {
	if clk != nil && !clk.Started() {
		return errcode.ClockNotRunning
	}
	s.mu.Lock()
	if s.inited {
		s.mu.Unlock()
		return errcode.AlreadyInitialized
	}
	s.inited = true
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// Done is closed when the scheduler goroutine has exited.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Create allocates a timer slot.
func (s *Scheduler) Create(mode Mode, h Handler) (ID, error) {
	if h == nil || mode > Repeated {
		return 0, errcode.InvalidParams
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inited {
		return 0, errcode.NotInitialized
	}
	if len(s.timers) >= s.max {
		return 0, errcode.NoMem
	}
	t := &timer{id: ID(len(s.timers) + 1), mode: mode, h: h, index: -1}
	s.timers = append(s.timers, t)
	return t.id, nil
}

// Start arms a timer to fire after interval (and every interval for
// Repeated timers). Starting an armed timer re-arms it.
func (s *Scheduler) Start(id ID, interval time.Duration, ctx any) error {
	if interval <= 0 {
		return errcode.InvalidParams
	}
	s.mu.Lock()
	t := s.lookup(id)
	if t == nil {
		s.mu.Unlock()
		return errcode.InvalidParams
	}
	t.every = interval
	t.ctx = ctx
	t.due = time.Now().Add(interval).UnixNano()
	if t.active {
		heap.Fix(&s.h, t.index)
	} else {
		t.active = true
		heap.Push(&s.h, t)
	}
	s.mu.Unlock()
	s.wakeup()
	return nil
}

// Stop disarms a timer. Stopping an idle timer is not an error.
func (s *Scheduler) Stop(id ID) error {
	s.mu.Lock()
	t := s.lookup(id)
	if t == nil {
		s.mu.Unlock()
		return errcode.InvalidParams
	}
	if t.active {
		heap.Remove(&s.h, t.index)
		t.active = false
	}
	s.mu.Unlock()
	s.wakeup()
	return nil
}

// StopAll disarms every timer.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	for _, t := range s.timers {
		t.active = false
		t.index = -1
	}
	s.h = s.h[:0]
	s.mu.Unlock()
	s.wakeup()
}

// Active reports whether a timer is armed.
func (s *Scheduler) Active(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.lookup(id)
	return t != nil && t.active
}

func (s *Scheduler) lookup(id ID) *timer {
	i := int(id) - 1
	if i < 0 || i >= len(s.timers) {
		return nil
	}
	return s.timers[i]
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	tm := time.NewTimer(time.Hour)
	defer tm.Stop()

	for {
		wait := s.nextWait()
		if wait < 0 {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}
		if wait == 0 {
			var (
				h   Handler
				arg any
			)
			s.mu.Lock()
			now := time.Now().UnixNano()
			if top := s.h.Top(); top != nil && top.due <= now {
				fire := heap.Pop(&s.h).(*timer)
				h, arg = fire.h, fire.ctx
				if fire.mode == Repeated {
					// Re-arm from the previous due time so the period does not
					// drift; skip ticks that were missed entirely.
					next := fire.due + int64(fire.every)
					if next <= now {
						next = now + int64(fire.every)
					}
					fire.due = next
					heap.Push(&s.h, fire)
				} else {
					fire.active = false
				}
			}
			s.mu.Unlock()

			if h != nil {
				h(arg)
			}
			continue
		}

		tm.Reset(time.Duration(wait))
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			if !tm.Stop() {
				select {
				case <-tm.C:
				default:
				}
			}
		case <-tm.C:
		}
	}
}

func (s *Scheduler) nextWait() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	top := s.h.Top()
	if top == nil {
		return -1
	}
	now := time.Now().UnixNano()
	if top.due <= now {
		return 0
	}
	return top.due - now
}

func (s *Scheduler) wakeup() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
