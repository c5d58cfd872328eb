package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// ConsoleSender prints messages to w. It stands in for a transport that has
// no credentials configured, so a local user can still complete verification.
type ConsoleSender struct {
	mu    sync.Mutex
	w     io.Writer
	label string
}

func NewConsoleSender(w io.Writer, label string) *ConsoleSender {
	return &ConsoleSender{w: w, label: label}
}

func (c *ConsoleSender) Send(_ context.Context, to string, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.w, "[%s to %s] %s\n", c.label, to, msg.Body)
	return err
}
