package cloudtasks

import (
	"context"
	"errors"
	"testing"
	"time"

	taskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/BearBump/LiveCalls/internal/integrations/scheduler"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClient_Schedule_BuildsHTTPTask(t *testing.T) {
	var got *taskspb.CreateTaskRequest
	c := newClientWithCreator(Config{ProjectID: "p", ServiceAccountEmail: "sa@p.iam"}, func(ctx context.Context, req *taskspb.CreateTaskRequest) (*taskspb.Task, error) {
		got = req
		return req.GetTask(), nil
	})

	fireAt := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	name, err := c.Schedule(context.Background(), scheduler.Task{
		Name:    "call-c1",
		URL:     "https://api.test/nodeExpired",
		Payload: []byte(`{"uuid":"c1","type":"call"}`),
		FireAt:  fireAt,
	})
	require.NoError(t, err)
	require.Equal(t, "projects/p/locations/europe-west1/queues/expire-node-tasks/tasks/call-c1", name)

	require.Equal(t, "projects/p/locations/europe-west1/queues/expire-node-tasks", got.GetParent())
	httpReq := got.GetTask().GetHttpRequest()
	require.Equal(t, taskspb.HttpMethod_POST, httpReq.GetHttpMethod())
	require.Equal(t, "https://api.test/nodeExpired", httpReq.GetUrl())
	require.Equal(t, "application/json", httpReq.GetHeaders()["Content-Type"])
	require.JSONEq(t, `{"uuid":"c1","type":"call"}`, string(httpReq.GetBody()))
	require.Equal(t, "sa@p.iam", httpReq.GetOidcToken().GetServiceAccountEmail())
	require.True(t, got.GetTask().GetScheduleTime().AsTime().Equal(fireAt))
}

func TestClient_Schedule_AlreadyExists(t *testing.T) {
	c := newClientWithCreator(Config{ProjectID: "p"}, func(ctx context.Context, req *taskspb.CreateTaskRequest) (*taskspb.Task, error) {
		return nil, status.Error(codes.AlreadyExists, "task exists")
	})
	_, err := c.Schedule(context.Background(), scheduler.Task{Name: "call-c1"})
	require.ErrorIs(t, err, scheduler.ErrAlreadyExists)
}

func TestClient_Schedule_ErrorWrapped(t *testing.T) {
	c := newClientWithCreator(Config{ProjectID: "p"}, func(ctx context.Context, req *taskspb.CreateTaskRequest) (*taskspb.Task, error) {
		return nil, errors.New("unavailable")
	})
	_, err := c.Schedule(context.Background(), scheduler.Task{Name: "call-c1"})
	require.Error(t, err)
	require.NotErrorIs(t, err, scheduler.ErrAlreadyExists)
	require.Contains(t, err.Error(), "create task")
}
