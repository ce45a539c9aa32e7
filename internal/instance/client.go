package instance

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/mahyarmirrashed/wallrot/internal/config"
	"gopkg.in/yaml.v3"
)

// Client talks to a running instance over its socket.
type Client struct {
	socket string
	http   *resty.Client
}

func NewClient(socket string) *Client {
	dial := func(ctx context.Context, _, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", socket)
	}
	rc := resty.New().
		SetTransport(&http.Transport{DialContext: dial}).
		SetBaseURL("http://unix").
		SetTimeout(2 * time.Minute)
	return &Client{socket: socket, http: rc}
}

// Health succeeds when an instance answers on the socket.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Status fetches the instance status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodGet, "/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Open hands files to the instance, which switches to them and rotates.
// Relative paths are made absolute against this process's directory.
func (c *Client) Open(ctx context.Context, files []string) (*Status, error) {
	abs := make([]string, 0, len(files))
	for _, f := range files {
		p, err := filepath.Abs(f)
		if err != nil {
			return nil, err
		}
		abs = append(abs, p)
	}
	var st Status
	if err := c.do(ctx, http.MethodPost, "/open", openRequest{Files: abs}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Next asks for an immediate rotation.
func (c *Client) Next(ctx context.Context) (*Status, error) {
	var st Status
	if err := c.do(ctx, http.MethodPost, "/next", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// PutConfig replaces the instance config.
func (c *Client) PutConfig(ctx context.Context, cfg *config.Config) (*Status, error) {
	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var st Status
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/yaml").
		SetBody(body).
		SetResult(&st).
		SetError(&errorResponse{})
	resp, err := req.Put("/config")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &st, nil
}

// Events calls fn for every event until ctx is done or the connection drops.
func (c *Client) Events(ctx context.Context, fn func(Event)) error {
	dialer := websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", c.socket)
		},
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, "ws://unix/events", nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		fn(ev)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req := c.http.R().SetContext(ctx).SetError(&errorResponse{})
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Execute(method, path)
	return check(resp, err)
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		if e, ok := resp.Error().(*errorResponse); ok && e.Error != "" {
			return errors.New(e.Error)
		}
		return fmt.Errorf("instance returned status %d", resp.StatusCode())
	}
	return nil
}
