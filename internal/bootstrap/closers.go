package bootstrap

import (
	"sync"

	"go.uber.org/zap"
)

type namedCloser struct {
	name  string
	close func() error
}

// Closers records the connections providers opened so they can be released
// on shutdown, newest first. Only connections that were actually created
// are registered.
type Closers struct {
	mu      sync.Mutex
	closers []namedCloser
}

func (c *Closers) Add(name string, fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, namedCloser{name: name, close: fn})
}

// CloseAll runs every closer once, logging failures and carrying on.
func (c *Closers) CloseAll(log *zap.Logger) {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].close(); err != nil {
			log.Sugar().Warnw("failed to close resource", "resource", closers[i].name, "error", err)
			continue
		}
		log.Sugar().Debugw("resource closed", "resource", closers[i].name)
	}
}
