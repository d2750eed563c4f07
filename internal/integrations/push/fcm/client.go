package fcm

import (
	"context"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/BearBump/LiveCalls/internal/integrations/push"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

type sender interface {
	Send(ctx context.Context, m *messaging.Message) (string, error)
}

// Client инициализирует firebase app один раз на процесс, при первой отправке.
type Client struct {
	projectID       string
	credentialsFile string

	once    sync.Once
	s       sender
	initErr error
	newFn   func(ctx context.Context) (sender, error)
}

func New(projectID, credentialsFile string) *Client {
	c := &Client{projectID: projectID, credentialsFile: credentialsFile}
	c.newFn = c.newMessagingClient
	return c
}

func newClientWithSender(s sender) *Client {
	return &Client{newFn: func(context.Context) (sender, error) { return s, nil }}
}

func (c *Client) newMessagingClient(ctx context.Context) (sender, error) {
	var opts []option.ClientOption
	if c.credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.credentialsFile))
	}
	var conf *firebase.Config
	if c.projectID != "" {
		conf = &firebase.Config{ProjectID: c.projectID}
	}
	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "firebase app")
	}
	mc, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "firebase messaging")
	}
	return mc, nil
}

func (c *Client) sender(ctx context.Context) (sender, error) {
	c.once.Do(func() {
		c.s, c.initErr = c.newFn(context.WithoutCancel(ctx))
	})
	return c.s, c.initErr
}

func (c *Client) Send(ctx context.Context, m push.Message) (string, error) {
	s, err := c.sender(ctx)
	if err != nil {
		return "", err
	}

	data := make(map[string]string, len(m.Data))
	for k, v := range m.Data {
		data[k] = v
	}

	id, err := s.Send(ctx, &messaging.Message{
		Token: m.Token,
		Notification: &messaging.Notification{
			Title: m.Title,
			Body:  m.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Title: m.Title,
				Body:  m.Body,
			},
		},
		Data: data,
	})
	if err != nil {
		if messaging.IsUnregistered(err) {
			return "", errors.Wrap(push.ErrUnregistered, err.Error())
		}
		return "", errors.Wrap(err, "fcm send")
	}
	return id, nil
}
