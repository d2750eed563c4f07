package fake

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BearBump/LiveCalls/internal/integrations/scheduler"
	"github.com/stretchr/testify/require"
)

func TestScheduler_ScheduleIsIdempotentByName(t *testing.T) {
	s := New()
	ctx := context.Background()

	name, err := s.Schedule(ctx, scheduler.Task{Name: "call-c1", FireAt: time.Now().Add(time.Minute)})
	require.NoError(t, err)
	require.Equal(t, "call-c1", name)

	_, err = s.Schedule(ctx, scheduler.Task{Name: "call-c1", FireAt: time.Now().Add(time.Minute)})
	require.ErrorIs(t, err, scheduler.ErrAlreadyExists)
	require.Len(t, s.Tasks(), 1)
}

func TestScheduler_FireDue(t *testing.T) {
	var hits atomic.Int32
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New()
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := s.Schedule(ctx, scheduler.Task{Name: "due", URL: srv.URL, Payload: []byte(`{"uuid":"c1","type":"call"}`), FireAt: now.Add(-time.Second)})
	require.NoError(t, err)
	_, err = s.Schedule(ctx, scheduler.Task{Name: "later", URL: srv.URL, FireAt: now.Add(time.Hour)})
	require.NoError(t, err)

	require.Equal(t, 1, s.FireDue(ctx))
	require.Equal(t, int32(1), hits.Load())
	require.JSONEq(t, `{"uuid":"c1","type":"call"}`, body)
	require.Len(t, s.Tasks(), 1)

	_, err = s.Schedule(ctx, scheduler.Task{Name: "due", URL: srv.URL, FireAt: now})
	require.ErrorIs(t, err, scheduler.ErrAlreadyExists)
}

func TestScheduler_FailedCallbackStaysQueued(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New()
	_, err := s.Schedule(context.Background(), scheduler.Task{Name: "x", URL: srv.URL, FireAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	require.Equal(t, 0, s.FireDue(context.Background()))
	require.Len(t, s.Tasks(), 1)
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	require.ErrorIs(t, s.Run(ctx, 5*time.Millisecond), context.Canceled)
}
