// Package shutdown coordinates teardown for the long-running commands.
// Registering the pollers, health checkers and HTTP servers here gives
// the daemons a single "stop all timers" operation.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Manager runs registered shutdown functions in LIFO order.
type Manager struct {
	mu      sync.Mutex
	funcs   []func(context.Context) error
	timeout time.Duration
	done    chan struct{}
	once    sync.Once
}

// New creates a shutdown manager with the given overall timeout.
func New(timeout time.Duration) *Manager {
	return &Manager{
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// Register adds a shutdown function. Functions run in reverse
// registration order.
func (m *Manager) Register(fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, fn)
}

// Done is closed once shutdown begins.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until SIGINT/SIGTERM, then runs every registered function.
// Errors are reported through report (may be nil).
func (m *Manager) Wait(report func(error)) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	m.once.Do(func() { close(m.done) })
	m.Shutdown(report)
}

// Shutdown runs the registered functions under the manager timeout.
func (m *Manager) Shutdown(report func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	for i := len(m.funcs) - 1; i >= 0; i-- {
		if err := m.funcs[i](ctx); err != nil && report != nil {
			report(err)
		}
	}
}

// StopHTTPServer adapts an http.Server-style Shutdown method.
func StopHTTPServer(server interface{ Shutdown(context.Context) error }) func(context.Context) error {
	return server.Shutdown
}
