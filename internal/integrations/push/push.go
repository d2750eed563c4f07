package push

import (
	"context"

	"github.com/pkg/errors"
)

// ErrUnregistered means the device token is no longer valid; retrying will not help.
var ErrUnregistered = errors.New("device token is not registered")

type Message struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

type Client interface {
	Send(ctx context.Context, m Message) (messageID string, err error)
}
