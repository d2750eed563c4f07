package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/BearBump/LiveCalls/internal/integrations/push"
)

// Client запоминает отправленные сообщения вместо реальной отправки в FCM.
type Client struct {
	mu   sync.Mutex
	sent []push.Message
	errs []error
}

func New() *Client { return &Client{} }

// FailNext makes the next len(errs) sends return the given errors in order.
func (c *Client) FailNext(errs ...error) {
	c.mu.Lock()
	c.errs = append(c.errs, errs...)
	c.mu.Unlock()
}

func (c *Client) Send(_ context.Context, m push.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return "", err
	}
	c.sent = append(c.sent, m)
	return fmt.Sprintf("fake-%d", len(c.sent)), nil
}

func (c *Client) Sent() []push.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]push.Message(nil), c.sent...)
}
