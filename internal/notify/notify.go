// Package notify posts host-frame notifications.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ligun0805/baseminer/internal/logging"
)

const (
	RefineReadyTitle = "🔧 Refine Cooldown Complete!"
	RefineReadyBody  = "Your gems are ready to refine! Come back to BaseMiner to convert your gems into miners."
)

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Request is the POST /api/notify body.
type Request struct {
	FID          int          `json:"fid"`
	Notification Notification `json:"notification"`
}

var ErrInvalid = errors.New("notification needs a title and body")

func (r Request) Validate() error {
	if strings.TrimSpace(r.Notification.Title) == "" || strings.TrimSpace(r.Notification.Body) == "" {
		return ErrInvalid
	}
	return nil
}

// StatusError is returned for non-2xx answers.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string { return fmt.Sprintf("notify: %d %s", e.Status, e.Body) }

// Client posts notifications to a single endpoint. Failures are returned and
// logged; nothing is retried.
type Client struct {
	URL  string
	http *http.Client
	log  *logging.Logger
}

func NewClient(url string, log *logging.Logger) *Client {
	return &Client{URL: url, http: &http.Client{Timeout: 12 * time.Second}, log: log.WithComponent("notify")}
}

// Send posts {fid:0, notification:n}.
func (c *Client) Send(ctx context.Context, n Notification) error {
	return c.Post(ctx, Request{FID: 0, Notification: n})
}

func (c *Client) Post(ctx context.Context, r Request) error {
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("notification failed", logging.Err(err))
		return fmt.Errorf("notify: %w", err)
	}
	defer resp.Body.Close()
	rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(rb))}
		c.log.Warn("notification rejected", "status", resp.StatusCode, logging.Err(err))
		return err
	}
	c.log.Debug("notification sent", "title", r.Notification.Title)
	return nil
}
