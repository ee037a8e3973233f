package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the workshop-management REST API that owns job types,
// closures and booking requests. Every call carries the booking token.
type Client struct {
	hc    *http.Client
	base  string
	token string
}

func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		hc:    &http.Client{Timeout: timeout},
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
	}
}

// Error is a failed upstream call. Detail is safe to show to a customer.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return "upstream: " + e.Detail
	}
	return fmt.Sprintf("upstream status=%d: %s", e.Status, e.Detail)
}

var ErrNotConfigured = errors.New("upstream booking token is not configured")

const (
	MinLookaheadDays     = 1
	MaxLookaheadDays     = 90
	DefaultLookaheadDays = 30
)

// ClampLookahead keeps in_days inside what the upstream accepts.
func ClampLookahead(days int) int {
	switch {
	case days < MinLookaheadDays:
		return DefaultLookaheadDays
	case days > MaxLookaheadDays:
		return MaxLookaheadDays
	default:
		return days
	}
}

// jobTypeName accepts either a bare string or an object with a name.
type jobTypeName string

func (n *jobTypeName) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = jobTypeName(s)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*n = jobTypeName(obj.Name)
	return nil
}

// JobTypes returns the upstream's offered job type names in its order.
func (c *Client) JobTypes(ctx context.Context) ([]string, error) {
	status, body, err := c.do(ctx, http.MethodGet, "booking_requests/available_job_types", nil, nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}
	var raw []jobTypeName
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode job types: %w", err)
	}
	out := make([]string, 0, len(raw))
	for _, n := range raw {
		if s := strings.TrimSpace(string(n)); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// UnavailableDays returns YYYY-MM-DD dates the workshop is closed within the
// next inDays days.
func (c *Client) UnavailableDays(ctx context.Context, inDays int) ([]string, error) {
	q := url.Values{"in_days": {strconv.Itoa(ClampLookahead(inDays))}}
	status, body, err := c.do(ctx, http.MethodGet, "booking_requests/unavailable_days", q, nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}
	var res struct {
		UnavailableDays []string `json:"unavailable_days"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode unavailable days: %w", err)
	}
	if res.UnavailableDays == nil {
		return []string{}, nil
	}
	return res.UnavailableDays, nil
}

// BookingRequest is the create_booking payload.
type BookingRequest struct {
	Name                     string   `json:"name"`
	FirstName                string   `json:"first_name"`
	LastName                 string   `json:"last_name"`
	Phone                    string   `json:"phone"`
	Email                    string   `json:"email"`
	RegistrationNumber       string   `json:"registration_number"`
	Make                     string   `json:"make"`
	Model                    string   `json:"model"`
	Year                     string   `json:"year,omitempty"`
	Odometer                 string   `json:"odometer,omitempty"`
	DropOffTime              string   `json:"drop_off_time"`
	JobTypeNames             []string `json:"job_type_names"`
	CourtesyVehicleRequested string   `json:"courtesy_vehicle_requested"`
	Note                     string   `json:"note,omitempty"`
}

// BookingResponse is the raw upstream reply, kept for the request log.
type BookingResponse struct {
	Status int
	Body   json.RawMessage
}

// CreateBooking posts a booking request. A 2xx reply that still reports an
// error in its body is treated as a failure.
func (c *Client) CreateBooking(ctx context.Context, req BookingRequest) (BookingResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return BookingResponse{}, err
	}
	status, body, err := c.do(ctx, http.MethodPost, "booking_requests/create_booking", nil, payload)
	resp := BookingResponse{Status: status, Body: jsonOrString(body)}
	if err != nil {
		return resp, err
	}
	if err := checkStatus(status, body); err != nil {
		return resp, err
	}
	var probe struct {
		Status string          `json:"status"`
		Error  json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &probe) == nil && (len(probe.Error) > 0 || probe.Status == "error") {
		return resp, &Error{Status: status, Detail: detailFrom(body, status)}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body []byte) (int, []byte, error) {
	if c.token == "" {
		return 0, nil, ErrNotConfigured
	}
	if query == nil {
		query = url.Values{}
	}

	var reader io.Reader
	if method == http.MethodGet {
		query.Set("token", c.token)
	} else {
		// token travels in the JSON body for writes
		var m map[string]any
		if len(body) > 0 {
			if err := json.Unmarshal(body, &m); err != nil {
				return 0, nil, err
			}
		} else {
			m = map[string]any{}
		}
		m["token"] = c.token
		b, err := json.Marshal(m)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(b)
	}

	u := c.base + "/" + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("accept", "application/json")
	if reader != nil {
		req.Header.Set("content-type", "application/json")
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, &Error{Detail: fmt.Sprintf("request failed: %v", err)}
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}

func checkStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	return &Error{Status: status, Detail: detailFrom(body, status)}
}

// detailFrom picks a human-readable message out of an error body.
func detailFrom(body []byte, status int) string {
	var r struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if json.Unmarshal(body, &r) == nil {
		switch {
		case r.Detail != "":
			return r.Detail
		case r.Message != "":
			return r.Message
		}
		if s, ok := r.Error.(string); ok && s != "" {
			return s
		}
	}
	if status == 0 {
		return "no response"
	}
	return http.StatusText(status)
}

func jsonOrString(b []byte) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	s, _ := json.Marshal(string(b))
	return s
}
