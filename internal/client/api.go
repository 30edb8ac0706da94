package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"shipnotify/internal/domain/notification"
	"shipnotify/internal/domain/shipment"
	"shipnotify/internal/realtime"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-resty/resty/v2"
)

const (
	defaultSyncLimit = notification.DefaultSyncLimit
	defaultMaxPages  = 10
	retryTries       = 3
)

// StatusError is a non-2xx gateway response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.Code, e.Body)
}

// retryable reports whether a failed request is worth repeating: network
// errors, 5xx and 429.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return true
}

var _ realtime.Syncer = (*API)(nil)

// API is the REST client for the gateway's end-user routes.
type API struct {
	http      *resty.Client
	syncLimit int
	maxPages  int
	retryBase time.Duration
	retryCap  time.Duration
}

// NewAPI creates a client for baseURL authenticated with token.
func NewAPI(baseURL, token string, syncLimit int) *API {
	if syncLimit <= 0 || syncLimit > defaultSyncLimit {
		syncLimit = defaultSyncLimit
	}
	return &API{
		http: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(token).
			SetTimeout(15*time.Second).
			SetHeader("Accept", "application/json"),
		syncLimit: syncLimit,
		maxPages:  defaultMaxPages,
		retryBase: time.Second,
		retryCap:  10 * time.Second,
	}
}

// SyncMissed fetches notifications newer than since, following pages until
// the gateway reports no more or the page cap is hit. An empty since fetches
// from the beginning.
func (a *API) SyncMissed(ctx context.Context, since notification.ID) ([]*notification.Notification, notification.ID, error) {
	var all []*notification.Notification
	cursor := since

	for page := 0; page < a.maxPages; page++ {
		resp, err := a.syncPage(ctx, cursor)
		if err != nil {
			return nil, "", err
		}
		all = append(all, resp.Notifications...)

		next := notification.MaxID(cursor, resp.LastID)
		if !resp.HasMore || len(resp.Notifications) == 0 || next == cursor {
			cursor = next
			break
		}
		cursor = next
		if page == a.maxPages-1 {
			slog.Warn("sync page cap reached, rest arrives on next connect", "pages", a.maxPages, "last_id", cursor)
		}
	}

	if cursor == since {
		cursor = ""
	}
	return all, cursor, nil
}

func (a *API) syncPage(ctx context.Context, since notification.ID) (*notification.SyncResponse, error) {
	return withRetry(ctx, a, func() (*notification.SyncResponse, error) {
		var out notification.SyncResponse
		req := a.http.R().
			SetContext(ctx).
			SetQueryParam("limit", strconv.Itoa(a.syncLimit)).
			SetResult(&out)
		if since != "" {
			req.SetQueryParam("since", string(since))
		}
		resp, err := req.Get("/api/notifications/sync")
		if err := check(resp, err); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// Stats fetches the user's notification counters.
func (a *API) Stats(ctx context.Context) (*notification.Stats, error) {
	return withRetry(ctx, a, func() (*notification.Stats, error) {
		var out notification.Stats
		resp, err := a.http.R().SetContext(ctx).SetResult(&out).Get("/api/notifications/stats")
		if err := check(resp, err); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// ShipmentHistory fetches a shipment's tracking history.
func (a *API) ShipmentHistory(ctx context.Context, trackingNumber string) (*shipment.TrackingUpdate, error) {
	return withRetry(ctx, a, func() (*shipment.TrackingUpdate, error) {
		var out shipment.TrackingUpdate
		resp, err := a.http.R().
			SetContext(ctx).
			SetPathParam("trackingNumber", trackingNumber).
			SetResult(&out).
			Get("/api/shipments/{trackingNumber}/history")
		if err := check(resp, err); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// MarkRead marks one notification read on the server.
func (a *API) MarkRead(ctx context.Context, id notification.ID) error {
	resp, err := a.http.R().
		SetContext(ctx).
		SetPathParam("id", string(id)).
		Patch("/api/notifications/{id}/read")
	return check(resp, err)
}

// MarkAllRead marks every notification read on the server.
func (a *API) MarkAllRead(ctx context.Context) (int, error) {
	var out struct {
		Updated int `json:"updated"`
	}
	resp, err := a.http.R().SetContext(ctx).SetResult(&out).Patch("/api/notifications/read-all")
	if err := check(resp, err); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("calling gateway: %w", err)
	}
	if resp.IsError() {
		return &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

// withRetry runs op with exponential backoff: retryBase doubling up to
// retryCap, at most retryTries attempts. 4xx other than 429 fails at once.
func withRetry[T any](ctx context.Context, a *API, op func() (T, error)) (T, error) {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     a.retryBase,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         a.retryCap,
	}
	b.Reset()

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(retryTries))
}
