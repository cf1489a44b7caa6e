// Package hosttest provides a deterministic host with a virtual clock.
package hosttest

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrClosed = errors.New("hosttest: host closed")

type timer struct {
	seq      uint64
	deadline time.Time
	task     func()
	canceled bool
}

// Manual queues posted tasks until Flush or Advance runs them. Timers fire
// when Advance moves the virtual clock past their deadline.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	queue  []func()
	timers []*timer
	seq    uint64
	closed bool
}

func NewManual() *Manual {
	return &Manual{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *Manual) Post(task func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.queue = append(m.queue, task)
	return nil
}

func (m *Manual) AfterFunc(delay time.Duration, task func()) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	m.seq++
	t := &timer{seq: m.seq, deadline: m.now.Add(delay), task: task}
	m.timers = append(m.timers, t)

	return func() {
		m.mu.Lock()
		t.canceled = true
		m.mu.Unlock()
	}, nil
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Flush runs queued tasks, including tasks they post, until the queue is
// empty. It returns the number of tasks run.
func (m *Manual) Flush() int {
	n := 0
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return n
		}
		task := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		task()
		n++
	}
}

// Advance flushes, then moves the clock forward by d, firing due timers in
// deadline order and flushing after each one.
func (m *Manual) Advance(d time.Duration) {
	m.Flush()

	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		t.task()
		m.Flush()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

func (m *Manual) nextDue(target time.Time) *timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.canceled {
			live = append(live, t)
		}
	}
	m.timers = live

	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].deadline.Equal(m.timers[j].deadline) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].deadline.Before(m.timers[j].deadline)
	})

	if len(m.timers) == 0 || m.timers[0].deadline.After(target) {
		return nil
	}

	t := m.timers[0]
	m.timers = m.timers[1:]
	if t.deadline.After(m.now) {
		m.now = t.deadline
	}
	return t
}

// Pending returns the number of queued tasks and live timers.
func (m *Manual) Pending() (tasks, timers int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.timers {
		if !t.canceled {
			timers++
		}
	}
	return len(m.queue), timers
}

func (m *Manual) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}
