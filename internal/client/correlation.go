package client

import (
	"sync"

	"github.com/google/uuid"
)

// CorrelationID is the session-wide request tag. The server may replace it
// by echoing a different value.
type CorrelationID struct {
	mu sync.RWMutex
	id string
}

func NewCorrelationID() *CorrelationID {
	return &CorrelationID{id: uuid.NewString()}
}

func (c *CorrelationID) Get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// Set replaces the id; empty values are ignored.
func (c *CorrelationID) Set(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
}
