package settings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/example/workshop-booking/internal/db"
)

// JobType is the local record for an upstream job type: the upstream owns
// the name, the workshop adds a description and can hide it.
type JobType struct {
	ID          int64
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var ErrInvalidName = errors.New("job type name is required")

type JobTypeRepo struct{ db *db.DB }

func NewJobTypeRepo(d *db.DB) *JobTypeRepo { return &JobTypeRepo{db: d} }

func (r *JobTypeRepo) List(ctx context.Context, activeOnly bool) ([]JobType, error) {
	rows, err := r.db.Query(ctx, `
SELECT id,name,description,is_active,created_at,updated_at
FROM job_types
WHERE is_active OR NOT $1
ORDER BY name ASC`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JobType
	for rows.Next() {
		var j JobType
		if err := rows.Scan(&j.ID, &j.Name, &j.Description, &j.IsActive, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Upsert creates the job type or replaces its description.
func (r *JobTypeRepo) Upsert(ctx context.Context, name, description string) (JobType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return JobType{}, ErrInvalidName
	}
	var j JobType
	err := r.db.QueryRow(ctx, `
INSERT INTO job_types(name, description)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET description=EXCLUDED.description, updated_at=now()
RETURNING id,name,description,is_active,created_at,updated_at`,
		name, strings.TrimSpace(description),
	).Scan(&j.ID, &j.Name, &j.Description, &j.IsActive, &j.CreatedAt, &j.UpdatedAt)
	return j, db.WrapNotFound(err)
}

func (r *JobTypeRepo) SetActive(ctx context.Context, name string, active bool) error {
	n, err := r.db.ExecAffected(ctx, `UPDATE job_types SET is_active=$2, updated_at=now() WHERE name=$1`, name, active)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *JobTypeRepo) Delete(ctx context.Context, name string) error {
	n, err := r.db.ExecAffected(ctx, `DELETE FROM job_types WHERE name=$1`, name)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}
