package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"pos-system/internal/domain"
)

// Client talks to the order service. Every failure is classified into one
// of the domain error kinds: transport errors and timeouts are
// ErrNetwork (retryable), 4xx responses are ErrRejected (terminal), other
// non-2xx are treated as ErrNetwork since the backend may recover.
type Client struct {
	base    *url.URL
	http    *http.Client
	staffID string
	timeout time.Duration
}

func New(baseURL, staffID string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:    u,
		http:    &http.Client{},
		staffID: staffID,
		timeout: timeout,
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	rel := &url.URL{Path: path, RawQuery: query.Encode()}
	return c.base.ResolveReference(rel).String()
}

// Submit posts one order. The payload carries the client-generated
// LocalID, so resubmitting after an ambiguous failure is safe: the server
// deduplicates on it.
func (c *Client) Submit(ctx context.Context, order domain.PendingOrder) (domain.SubmitOrderResponse, error) {
	req := domain.SubmitOrderRequest{
		LocalID:         order.LocalID,
		OrderType:       order.OrderType,
		TableNumber:     order.TableNumber,
		DeliveryAddress: order.DeliveryAddr,
		Items:           order.Items,
		Subtotal:        order.Subtotal,
		Total:           order.Total,
		PointsUsed:      order.PointsUsed,
		CustomerID:      order.CustomerID,
		StaffID:         c.staffID,
		CreatedAt:       order.CreatedAt,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return domain.SubmitOrderResponse{}, fmt.Errorf("marshal order %s: %w", order.LocalID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/orders", nil), bytes.NewReader(body))
	if err != nil {
		return domain.SubmitOrderResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.SubmitOrderResponse{}, fmt.Errorf("submit %s: %v: %w", order.LocalID, err, domain.ErrNetwork)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out domain.SubmitOrderResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			// server persisted the order but the ack was unreadable; retry
			// is safe via LocalID dedup
			return domain.SubmitOrderResponse{}, fmt.Errorf("decode ack for %s: %v: %w", order.LocalID, err, domain.ErrNetwork)
		}
		return out, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return domain.SubmitOrderResponse{}, fmt.Errorf("submit %s: status %d: %w", order.LocalID, resp.StatusCode, domain.ErrRejected)
	default:
		return domain.SubmitOrderResponse{}, fmt.Errorf("submit %s: status %d: %w", order.LocalID, resp.StatusCode, domain.ErrNetwork)
	}
}

// LookupCustomer resolves a phone number to a loyalty snapshot. Unknown
// numbers come back as a zero-points default, not an error.
func (c *Client) LookupCustomer(ctx context.Context, phone string) (domain.CustomerLookupResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{"phone": {phone}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/customers", q), nil)
	if err != nil {
		return domain.CustomerLookupResponse{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.CustomerLookupResponse{}, fmt.Errorf("customer lookup: %v: %w", err, domain.ErrNetwork)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.CustomerLookupResponse{}, fmt.Errorf("customer lookup: status %d: %w", resp.StatusCode, domain.ErrNetwork)
	}
	var out domain.CustomerLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.CustomerLookupResponse{}, fmt.Errorf("decode customer: %w", err)
	}
	return out, nil
}

// Probe is the reachability check the connectivity monitor runs: a HEAD
// against the health endpoint with caching disabled. Platform-level
// "online" can be true while this specific backend is down, so only the
// probe decides.
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.endpoint("/health-check", nil), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("probe: %v: %w", err, domain.ErrNetwork)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("probe: status %d: %w", resp.StatusCode, domain.ErrNetwork)
	}
	return nil
}
