package fake

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/LiveCalls/internal/integrations/scheduler"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Scheduler держит задачи в памяти и сам вызывает callback, когда подходит время.
// Используется локально вместо Cloud Tasks.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]scheduler.Task
	fired map[string]struct{}

	httpc *http.Client
	now   func() time.Time
	err   error
}

func New() *Scheduler {
	return &Scheduler{
		tasks: make(map[string]scheduler.Task),
		fired: make(map[string]struct{}),
		httpc: &http.Client{Timeout: 10 * time.Second},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// FailWith makes subsequent Schedule calls return err (nil restores normal behaviour).
func (s *Scheduler) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Scheduler) Schedule(_ context.Context, t scheduler.Task) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if t.Name == "" {
		t.Name = "task-" + uuid.NewString()
	}
	_, queued := s.tasks[t.Name]
	_, fired := s.fired[t.Name]
	if queued || fired {
		return t.Name, scheduler.ErrAlreadyExists
	}
	s.tasks[t.Name] = t
	return t.Name, nil
}

func (s *Scheduler) Tasks() []scheduler.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]scheduler.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FireDue POSTs every task whose fire time has passed. Failed tasks stay queued.
func (s *Scheduler) FireDue(ctx context.Context) int {
	now := s.now()
	s.mu.Lock()
	var due []scheduler.Task
	for _, t := range s.tasks {
		if !t.FireAt.After(now) {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	fired := 0
	for _, t := range due {
		if err := s.post(ctx, t); err != nil {
			slog.Error("fire task", "task", t.Name, "error", err.Error())
			continue
		}
		s.mu.Lock()
		delete(s.tasks, t.Name)
		s.fired[t.Name] = struct{}{}
		s.mu.Unlock()
		fired++
	}
	return fired
}

func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.FireDue(ctx)
		}
	}
}

func (s *Scheduler) post(ctx context.Context, t scheduler.Task) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(t.Payload))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errors.Errorf("callback http %d", resp.StatusCode)
	}
	return nil
}
