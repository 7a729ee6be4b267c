package pg

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"trusthub.org/internal/domain"
	"trusthub.org/internal/ids"
	"trusthub.org/internal/store"
)

var disputeColumns = []string{
	"id", "job_id", "opened_by", "coalesce(assigned_to, '')", "status", "reason",
	"coalesce(evidence, '')", "coalesce(resolution, '')", "coalesce(decision, '')", "created_at", "resolved_at",
}

func scanDispute(row rowScanner) (domain.Dispute, error) {
	var (
		d          domain.Dispute
		resolvedAt sql.NullTime
	)
	if err := row.Scan(&d.ID, &d.JobID, &d.OpenedBy, &d.AssignedTo, &d.Status, &d.Reason,
		&d.Evidence, &d.Resolution, &d.Decision, &d.CreatedAt, &resolvedAt); err != nil {
		return domain.Dispute{}, err
	}
	d.ResolvedAt = timePtr(resolvedAt)
	return d, nil
}

func (t *tx) CreateDispute(ctx context.Context, d *domain.Dispute) error {
	if d.ID == "" {
		d.ID = ids.New()
	}
	row, err := t.getRow(ctx, psql.Insert("disputes").
		Columns("id", "job_id", "opened_by", "status", "reason", "evidence").
		Values(d.ID, d.JobID, d.OpenedBy, d.Status, d.Reason, nullString(d.Evidence)).
		Suffix("RETURNING created_at"))
	if err != nil {
		return err
	}
	if err := row.Scan(&d.CreatedAt); err != nil {
		return fmt.Errorf("pg: insert dispute: %w", translate(err))
	}
	return nil
}

func (t *tx) DisputeByID(ctx context.Context, id string, forUpdate bool) (domain.Dispute, error) {
	row, err := t.getRow(ctx, lockIf(psql.Select(disputeColumns...).From("disputes").Where(sq.Eq{"id": id}), forUpdate))
	if err != nil {
		return domain.Dispute{}, err
	}
	d, err := scanDispute(row)
	if err != nil {
		return domain.Dispute{}, translate(err)
	}
	return d, nil
}

func (t *tx) ListDisputes(ctx context.Context, f store.DisputeFilter) ([]domain.Dispute, error) {
	b := psql.Select(disputeColumns...).From("disputes").OrderBy("created_at DESC", "id DESC")
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": f.Status})
	}
	rows, err := t.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("pg: list disputes: %w", err)
	}
	defer rows.Close()

	var out []domain.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("pg: scan dispute: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (t *tx) UpdateDispute(ctx context.Context, d domain.Dispute) error {
	n, err := t.exec(ctx, psql.Update("disputes").
		Set("assigned_to", nullString(d.AssignedTo)).
		Set("status", d.Status).
		Set("resolution", nullString(d.Resolution)).
		Set("decision", nullString(string(d.Decision))).
		Set("resolved_at", d.ResolvedAt).
		Where(sq.Eq{"id": d.ID}))
	if err != nil {
		return fmt.Errorf("pg: update dispute: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
