package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// Client сообщает основному бэкенду, что звонок истёк.
type Client struct {
	host  string
	token string
	httpc *http.Client
}

func New(host, token string) *Client {
	return &Client{
		host:  host,
		token: token,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type expireCallReq struct {
	CallID string `json:"callId"`
}

func (c *Client) CallExpired(ctx context.Context, callID string) error {
	if c.host == "" {
		return errors.New("backend host is not configured")
	}
	u, err := url.Parse(c.host)
	if err != nil {
		return errors.Wrap(err, "parse backend host")
	}
	u = u.JoinPath("expire-call", c.token)

	b, err := json.Marshal(expireCallReq{CallID: callID})
	if err != nil {
		return errors.Wrap(err, "marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("backend expire-call http %d", resp.StatusCode)
	}
	return nil
}
