package logs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"barscan/internal/api"
)

var ErrAPIUnavailable = errors.New("event API unavailable")

// EventsClient reads the daemon's HTTP API.
type EventsClient struct {
	base  *url.URL
	token string
	http  *http.Client
}

// EventsQuery selects a page of activity events.
type EventsQuery struct {
	Since uint64
	Limit int
	Wait  bool
}

// NewEventsClient returns nil for an empty bind address.
func NewEventsClient(bind, token string) (*EventsClient, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &EventsClient{
		base:  base,
		token: strings.TrimSpace(token),
		// No timeout - long polls block until an event arrives or the caller cancels.
		http: &http.Client{},
	}, nil
}

// Fetch returns one page of events.
func (c *EventsClient) Fetch(ctx context.Context, q EventsQuery) (api.EventsResponse, error) {
	if c == nil {
		return api.EventsResponse{}, ErrAPIUnavailable
	}
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Wait {
		values.Set("wait", "1")
	}

	resp, err := c.get(ctx, "/api/events", values, "application/json")
	if err != nil {
		return api.EventsResponse{}, err
	}
	defer resp.Body.Close()

	var payload api.EventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return api.EventsResponse{}, err
	}
	return payload, nil
}

// Frame returns the latest preview JPEG and its frame sequence number.
func (c *EventsClient) Frame(ctx context.Context) ([]byte, uint64, error) {
	if c == nil {
		return nil, 0, ErrAPIUnavailable
	}
	resp, err := c.get(ctx, "/api/frame.jpg", nil, "image/jpeg")
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	seq, _ := strconv.ParseUint(resp.Header.Get("X-Frame-Seq"), 10, 64)
	return data, seq, nil
}

func (c *EventsClient) get(ctx context.Context, path string, values url.Values, accept string) (*http.Response, error) {
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: values.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var body api.ErrorResponse
		if json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body) == nil && body.Error != "" {
			return nil, fmt.Errorf("api %s returned status %d: %s", path, resp.StatusCode, body.Error)
		}
		return nil, fmt.Errorf("api %s returned status %d", path, resp.StatusCode)
	}
	return resp, nil
}

// IsAPIUnavailable reports whether err means the HTTP API cannot be reached.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
