package bookinglog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/workshop-booking/internal/db"
)

type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

// Entry is one booking submission as sent to the upstream, with its reply.
type Entry struct {
	ID                 int64
	Reference          string
	CustomerName       string
	CustomerEmail      string
	RegistrationNumber string
	RequestPayload     json.RawMessage
	ResponseStatus     int
	ResponseBody       json.RawMessage
	Status             Status
	CreatedAt          time.Time
}

func (e Entry) Validate() error {
	if e.Reference == "" {
		return fmt.Errorf("reference required")
	}
	if e.Status != StatusSuccess && e.Status != StatusFailed {
		return fmt.Errorf("invalid status %q", e.Status)
	}
	if len(e.RequestPayload) == 0 || !json.Valid(e.RequestPayload) {
		return fmt.Errorf("request payload must be JSON")
	}
	if len(e.ResponseBody) > 0 && !json.Valid(e.ResponseBody) {
		return fmt.Errorf("response body must be JSON")
	}
	return nil
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) Record(ctx context.Context, e Entry) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	var body []byte
	if len(e.ResponseBody) > 0 {
		body = e.ResponseBody
	}
	var id int64
	err := r.db.QueryRow(ctx, `
INSERT INTO booking_request_logs(reference,customer_name,customer_email,registration_number,request_payload,response_status,response_body,status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id`,
		e.Reference, e.CustomerName, e.CustomerEmail, e.RegistrationNumber, []byte(e.RequestPayload), e.ResponseStatus, body, string(e.Status),
	).Scan(&id)
	return id, db.WrapNotFound(err)
}

// List returns the most recent entries first.
func (r *Repo) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
SELECT id,reference,customer_name,customer_email,registration_number,request_payload,response_status,response_body,status,created_at
FROM booking_request_logs
ORDER BY created_at DESC, id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var payload, body []byte
		var status string
		if err := rows.Scan(&e.ID, &e.Reference, &e.CustomerName, &e.CustomerEmail, &e.RegistrationNumber,
			&payload, &e.ResponseStatus, &body, &status, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.RequestPayload = payload
		e.ResponseBody = body
		e.Status = Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}
