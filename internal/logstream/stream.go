package logstream

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"barscan/internal/api"
	"barscan/internal/ipc"
	"barscan/internal/logs"
)

// EventSource captures the IPC events contract used when the HTTP API is
// unreachable.
type EventSource interface {
	Events(req ipc.EventsRequest) (*ipc.EventsResponse, error)
}

// TailClient captures the IPC log tail contract.
type TailClient interface {
	LogTail(req ipc.LogTailRequest) (*ipc.LogTailResponse, error)
}

// Options controls stream behavior.
type Options struct {
	// Lines is the backlog size emitted before following.
	Lines  int
	Follow bool
	// Kinds keeps only events of these kinds when non-empty.
	Kinds []string
}

func (o Options) wants(kind string) bool {
	return len(o.Kinds) == 0 || slices.ContainsFunc(o.Kinds, func(k string) bool {
		return strings.EqualFold(strings.TrimSpace(k), kind)
	})
}

// fetchFunc returns the events after since.
type fetchFunc func(ctx context.Context, since uint64, limit int, wait bool) (api.EventsResponse, error)

// Watch emits activity events from the HTTP API when available, falling
// back to IPC. It returns true when at least one event was emitted.
func Watch(
	ctx context.Context,
	apiClient *logs.EventsClient,
	fallback EventSource,
	opts Options,
	onEvent func(api.Event),
) (bool, error) {
	printed, err := watch(ctx, apiFetch(apiClient), opts, onEvent)
	if err == nil {
		return printed, nil
	}
	if !logs.IsAPIUnavailable(err) || printed {
		return printed, err
	}
	if fallback == nil {
		return false, logs.ErrAPIUnavailable
	}
	return watch(ctx, ipcFetch(fallback), opts, onEvent)
}

func apiFetch(client *logs.EventsClient) fetchFunc {
	return func(ctx context.Context, since uint64, limit int, wait bool) (api.EventsResponse, error) {
		return client.Fetch(ctx, logs.EventsQuery{Since: since, Limit: limit, Wait: wait})
	}
}

func ipcFetch(source EventSource) fetchFunc {
	return func(_ context.Context, since uint64, limit int, wait bool) (api.EventsResponse, error) {
		req := ipc.EventsRequest{Since: since, Limit: limit}
		if wait {
			req.WaitMillis = 20000
		}
		resp, err := source.Events(req)
		if err != nil {
			return api.EventsResponse{}, fmt.Errorf("fetch events: %w", err)
		}
		if resp == nil {
			return api.EventsResponse{}, errors.New("events response missing")
		}
		return *resp, nil
	}
}

func watch(ctx context.Context, fetch fetchFunc, opts Options, onEvent func(api.Event)) (bool, error) {
	backlog := opts.Lines
	if backlog <= 0 {
		backlog = 50
	}

	// The first page is the whole buffer; keep its last backlog entries.
	resp, err := fetch(ctx, 0, 0, false)
	if err != nil {
		return false, err
	}
	page := resp.Events
	if len(page) > backlog {
		page = page[len(page)-backlog:]
	}
	printed := emit(page, opts, onEvent)
	since := resp.Next

	for opts.Follow {
		if ctx.Err() != nil {
			return printed, nil
		}
		resp, err := fetch(ctx, since, 200, true)
		if err != nil {
			if ctx.Err() != nil {
				return printed, nil
			}
			return printed, err
		}
		if emit(resp.Events, opts, onEvent) {
			printed = true
		}
		since = resp.Next
	}
	return printed, nil
}

func emit(events []api.Event, opts Options, onEvent func(api.Event)) bool {
	printed := false
	for _, evt := range events {
		if !opts.wants(evt.Kind) {
			continue
		}
		if onEvent != nil {
			onEvent(evt)
		}
		printed = true
	}
	return printed
}

// Lines emits daemon log lines through IPC tailing. It returns true when at
// least one line was emitted.
func Lines(ctx context.Context, client TailClient, opts Options, onLine func(string)) (bool, error) {
	if client == nil {
		return false, errors.New("log tail client unavailable")
	}
	initialLimit := opts.Lines
	if initialLimit < 0 {
		initialLimit = 0
	}
	initialOffset := int64(-1)
	if initialLimit == 0 {
		initialOffset = 0
	}

	offset := initialOffset
	limit := initialLimit
	printed := false
	for {
		req := ipc.LogTailRequest{
			Offset:     offset,
			Limit:      limit,
			Follow:     opts.Follow,
			WaitMillis: 1000,
		}
		resp, err := client.LogTail(req)
		if err != nil {
			return printed, fmt.Errorf("tail logs: %w", err)
		}
		if resp == nil {
			return printed, errors.New("log tail response missing")
		}
		for _, line := range resp.Lines {
			if onLine != nil {
				onLine(line)
			}
			printed = true
		}
		offset = resp.Offset
		limit = 0
		if !opts.Follow {
			return printed, nil
		}
		select {
		case <-ctx.Done():
			return printed, nil
		default:
		}
	}
}
