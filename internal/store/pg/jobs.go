package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"trusthub.org/internal/domain"
	"trusthub.org/internal/ids"
	"trusthub.org/internal/store"
)

var jobColumns = []string{
	"id", "title", "description", "coalesce(deliverables, '')", "service_type", "budget", "deadline",
	"client_id", "coalesce(expert_id, '')", "status", "approved_by_admin", "created_at", "updated_at",
}

func scanJob(row rowScanner) (domain.Job, error) {
	var (
		j        domain.Job
		deadline sql.NullTime
	)
	if err := row.Scan(&j.ID, &j.Title, &j.Description, &j.Deliverables, &j.ServiceType, &j.Budget, &deadline,
		&j.ClientID, &j.ExpertID, &j.Status, &j.ApprovedByAdmin, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return domain.Job{}, err
	}
	if deadline.Valid {
		d := deadline.Time
		j.Deadline = &d
	}
	return j, nil
}

func (t *tx) CreateJob(ctx context.Context, j *domain.Job) error {
	if j.ID == "" {
		j.ID = ids.New()
	}
	row, err := t.getRow(ctx, psql.Insert("jobs").
		Columns("id", "title", "description", "deliverables", "service_type", "budget", "deadline",
			"client_id", "expert_id", "status", "approved_by_admin").
		Values(j.ID, j.Title, j.Description, nullString(j.Deliverables), j.ServiceType, j.Budget, j.Deadline,
			j.ClientID, nullString(j.ExpertID), j.Status, j.ApprovedByAdmin).
		Suffix("RETURNING created_at, updated_at"))
	if err != nil {
		return err
	}
	if err := row.Scan(&j.CreatedAt, &j.UpdatedAt); err != nil {
		return fmt.Errorf("pg: insert job: %w", translate(err))
	}
	return nil
}

func (t *tx) JobByID(ctx context.Context, id string, forUpdate bool) (domain.Job, error) {
	row, err := t.getRow(ctx, lockIf(psql.Select(jobColumns...).From("jobs").Where(sq.Eq{"id": id}), forUpdate))
	if err != nil {
		return domain.Job{}, err
	}
	j, err := scanJob(row)
	if err != nil {
		return domain.Job{}, translate(err)
	}
	return j, nil
}

func (t *tx) ListJobs(ctx context.Context, f store.JobFilter) ([]domain.Job, error) {
	b := psql.Select(jobColumns...).From("jobs").OrderBy("created_at DESC", "id DESC")
	if f.ApprovedOnly {
		b = b.Where(sq.Eq{"approved_by_admin": true})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": f.Status})
	}
	rows, err := t.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("pg: list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("pg: scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// UpdateJob persists the mutable lifecycle fields of j. A zero UpdatedAt
// is stamped by the database.
func (t *tx) UpdateJob(ctx context.Context, j domain.Job) error {
	var updatedAt any = sq.Expr("now()")
	if !j.UpdatedAt.IsZero() {
		updatedAt = j.UpdatedAt
	}
	n, err := t.exec(ctx, psql.Update("jobs").
		Set("status", j.Status).
		Set("approved_by_admin", j.ApprovedByAdmin).
		Set("expert_id", nullString(j.ExpertID)).
		Set("updated_at", updatedAt).
		Where(sq.Eq{"id": j.ID}))
	if err != nil {
		return fmt.Errorf("pg: update job: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

var milestoneColumns = []string{
	"id", "job_id", "title", "coalesce(description, '')", "amount", "deadline", "status",
	"delivered_at", "accepted_at", "created_at",
}

func scanMilestone(row rowScanner) (domain.Milestone, error) {
	var (
		m                                 domain.Milestone
		deadline, deliveredAt, acceptedAt sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.JobID, &m.Title, &m.Description, &m.Amount, &deadline, &m.Status,
		&deliveredAt, &acceptedAt, &m.CreatedAt); err != nil {
		return domain.Milestone{}, err
	}
	m.Deadline = timePtr(deadline)
	m.DeliveredAt = timePtr(deliveredAt)
	m.AcceptedAt = timePtr(acceptedAt)
	return m, nil
}

func (t *tx) CreateMilestone(ctx context.Context, m *domain.Milestone) error {
	if m.ID == "" {
		m.ID = ids.New()
	}
	row, err := t.getRow(ctx, psql.Insert("milestones").
		Columns("id", "job_id", "title", "description", "amount", "deadline", "status").
		Values(m.ID, m.JobID, m.Title, nullString(m.Description), m.Amount, m.Deadline, m.Status).
		Suffix("RETURNING created_at"))
	if err != nil {
		return err
	}
	if err := row.Scan(&m.CreatedAt); err != nil {
		return fmt.Errorf("pg: insert milestone: %w", translate(err))
	}
	return nil
}

func (t *tx) MilestonesByJob(ctx context.Context, jobID string) ([]domain.Milestone, error) {
	rows, err := t.query(ctx, psql.Select(milestoneColumns...).From("milestones").
		Where(sq.Eq{"job_id": jobID}).OrderBy("created_at ASC", "id ASC"))
	if err != nil {
		return nil, fmt.Errorf("pg: list milestones: %w", err)
	}
	defer rows.Close()

	var out []domain.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("pg: scan milestone: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
