package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "secret-token", 2*time.Second)
}

func TestJobTypes_AcceptsStringsAndObjects(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/booking_requests/available_job_types" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("token") != "secret-token" {
			t.Errorf("expected token in query, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`["Service", {"name": "Tyre Change"}, " ", {"name": "Diagnostics"}]`))
	})

	got, err := c.JobTypes(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := []string{"Service", "Tyre Change", "Diagnostics"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestUnavailableDays_ClampsLookahead(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Query().Get("in_days"))
		_, _ = w.Write([]byte(`{"unavailable_days": ["2024-06-13"]}`))
	})

	for _, in := range []int{0, 14, 365} {
		days, err := c.UnavailableDays(context.Background(), in)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !reflect.DeepEqual(days, []string{"2024-06-13"}) {
			t.Fatalf("unexpected days %v", days)
		}
	}
	if want := []string{"30", "14", "90"}; !reflect.DeepEqual(seen, want) {
		t.Fatalf("expected in_days %v, got %v", want, seen)
	}
}

func TestUnavailableDays_ErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error": "An error occurred: timeout"}`))
	})

	_, err := c.UnavailableDays(context.Background(), 30)
	var ue *Error
	if !errors.As(err, &ue) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ue.Status != http.StatusBadGateway || ue.Detail != "An error occurred: timeout" {
		t.Fatalf("unexpected error %+v", ue)
	}
}

func TestCreateBooking_SendsTokenInBody(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/booking_requests/create_booking" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("token") != "" {
			t.Errorf("token must not be in the query for writes")
		}
		b, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(b, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 991}`))
	})

	resp, err := c.CreateBooking(context.Background(), BookingRequest{
		Name:                     "Jane Doe",
		FirstName:                "Jane",
		LastName:                 "Doe",
		DropOffTime:              "12/06/2024 09:30",
		JobTypeNames:             []string{"Service"},
		CourtesyVehicleRequested: "false",
		Year:                     "2021",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Status != http.StatusCreated || string(resp.Body) != `{"id": 991}` {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got["token"] != "secret-token" || got["name"] != "Jane Doe" || got["year"] != "2021" {
		t.Fatalf("unexpected payload %v", got)
	}
	if _, ok := got["odometer"]; ok {
		t.Fatalf("empty odometer should be omitted, got %v", got["odometer"])
	}
}

func TestCreateBooking_ErrorInSuccessfulReply(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "error", "message": "Drop-off time is no longer available"}`))
	})

	resp, err := c.CreateBooking(context.Background(), BookingRequest{})
	var ue *Error
	if !errors.As(err, &ue) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ue.Detail != "Drop-off time is no longer available" {
		t.Fatalf("unexpected detail %q", ue.Detail)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("expected status recorded, got %d", resp.Status)
	}
}

func TestCreateBooking_NonJSONBodyIsKept(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	resp, err := c.CreateBooking(context.Background(), BookingRequest{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if string(resp.Body) != `"boom"` {
		t.Fatalf("expected body quoted as JSON string, got %s", resp.Body)
	}
}

func TestMissingToken(t *testing.T) {
	c := New("http://127.0.0.1:1", "", time.Second)
	if _, err := c.JobTypes(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
