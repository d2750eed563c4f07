package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrAlreadyExists is returned when a task with the same name is already queued.
// Callers scheduling idempotently treat it as success.
var ErrAlreadyExists = errors.New("task already exists")

type Task struct {
	Name    string
	URL     string
	Payload []byte
	FireAt  time.Time
}

// ExpirationPayload is the JSON body POSTed back to nodeExpired when a task fires.
type ExpirationPayload struct {
	UUID string `json:"uuid"`
	Type string `json:"type"`
}

type Client interface {
	Schedule(ctx context.Context, t Task) (string, error)
}

// TaskName is the deterministic name of the expiration task of an entity.
func TaskName(entityType, entityID string) string {
	return entityType + "-" + entityID
}
