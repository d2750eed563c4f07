package cloudtasks

import (
	"context"
	"fmt"

	gcloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	taskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/BearBump/LiveCalls/internal/integrations/scheduler"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type Config struct {
	ProjectID           string
	Location            string
	Queue               string
	ServiceAccountEmail string
	CredentialsFile     string
}

type createFunc func(ctx context.Context, req *taskspb.CreateTaskRequest) (*taskspb.Task, error)

type Client struct {
	queuePath string
	saEmail   string
	create    createFunc
	close     func() error
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	tc, err := gcloudtasks.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "cloud tasks client")
	}
	c := newClientWithCreator(cfg, func(ctx context.Context, req *taskspb.CreateTaskRequest) (*taskspb.Task, error) {
		return tc.CreateTask(ctx, req)
	})
	c.close = tc.Close
	return c, nil
}

func newClientWithCreator(cfg Config, create createFunc) *Client {
	location := cfg.Location
	if location == "" {
		location = "europe-west1"
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "expire-node-tasks"
	}
	return &Client{
		queuePath: fmt.Sprintf("projects/%s/locations/%s/queues/%s", cfg.ProjectID, location, queue),
		saEmail:   cfg.ServiceAccountEmail,
		create:    create,
		close:     func() error { return nil },
	}
}

func (c *Client) Schedule(ctx context.Context, t scheduler.Task) (string, error) {
	httpReq := &taskspb.HttpRequest{
		HttpMethod: taskspb.HttpMethod_POST,
		Url:        t.URL,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       t.Payload,
	}
	if c.saEmail != "" {
		httpReq.AuthorizationHeader = &taskspb.HttpRequest_OidcToken{
			OidcToken: &taskspb.OidcToken{ServiceAccountEmail: c.saEmail},
		}
	}

	task := &taskspb.Task{
		MessageType:  &taskspb.Task_HttpRequest{HttpRequest: httpReq},
		ScheduleTime: timestamppb.New(t.FireAt),
	}
	if t.Name != "" {
		task.Name = c.queuePath + "/tasks/" + t.Name
	}

	created, err := c.create(ctx, &taskspb.CreateTaskRequest{Parent: c.queuePath, Task: task})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return task.Name, scheduler.ErrAlreadyExists
		}
		return "", errors.Wrap(err, "create task")
	}
	return created.GetName(), nil
}

func (c *Client) Close() error {
	return c.close()
}
