package bookinglog

import (
	"encoding/json"
	"testing"
)

func TestEntryValidate(t *testing.T) {
	ok := Entry{
		Reference:      "K7Q2M9X",
		RequestPayload: json.RawMessage(`{"name":"Jane Doe"}`),
		ResponseStatus: 201,
		ResponseBody:   json.RawMessage(`{"id":1}`),
		Status:         StatusSuccess,
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid entry, got %v", err)
	}

	cases := map[string]func(*Entry){
		"missing reference": func(e *Entry) { e.Reference = "" },
		"unknown status":    func(e *Entry) { e.Status = "Pending" },
		"empty payload":     func(e *Entry) { e.RequestPayload = nil },
		"bad payload":       func(e *Entry) { e.RequestPayload = json.RawMessage(`{`) },
		"bad response":      func(e *Entry) { e.ResponseBody = json.RawMessage(`nope`) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			e := ok
			mutate(&e)
			if err := e.Validate(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	noReply := ok
	noReply.ResponseBody = nil
	noReply.Status = StatusFailed
	if err := noReply.Validate(); err != nil {
		t.Fatalf("expected entry without a reply to be valid, got %v", err)
	}
}
