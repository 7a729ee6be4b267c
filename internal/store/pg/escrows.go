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

var escrowColumns = []string{
	"id", "job_id", "total_amount", "platform_fee", "status", "funded_at", "released_at", "refunded_at", "created_at",
}

func scanEscrow(row rowScanner) (domain.Escrow, error) {
	var (
		e                                domain.Escrow
		fundedAt, releasedAt, refundedAt sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.JobID, &e.TotalAmount, &e.PlatformFee, &e.Status,
		&fundedAt, &releasedAt, &refundedAt, &e.CreatedAt); err != nil {
		return domain.Escrow{}, err
	}
	e.FundedAt = timePtr(fundedAt)
	e.ReleasedAt = timePtr(releasedAt)
	e.RefundedAt = timePtr(refundedAt)
	return e, nil
}

// CreateEscrow relies on the UNIQUE(job_id) constraint; concurrent inserts for
// one job leave exactly one row and the loser sees store.ErrDuplicate.
func (t *tx) CreateEscrow(ctx context.Context, e *domain.Escrow) error {
	if e.ID == "" {
		e.ID = ids.New()
	}
	row, err := t.getRow(ctx, psql.Insert("escrows").
		Columns("id", "job_id", "total_amount", "platform_fee", "status", "funded_at").
		Values(e.ID, e.JobID, e.TotalAmount, e.PlatformFee, e.Status, e.FundedAt).
		Suffix("RETURNING created_at"))
	if err != nil {
		return err
	}
	if err := row.Scan(&e.CreatedAt); err != nil {
		return fmt.Errorf("pg: insert escrow: %w", translate(err))
	}
	return nil
}

func (t *tx) EscrowByJob(ctx context.Context, jobID string, forUpdate bool) (domain.Escrow, error) {
	row, err := t.getRow(ctx, lockIf(psql.Select(escrowColumns...).From("escrows").Where(sq.Eq{"job_id": jobID}), forUpdate))
	if err != nil {
		return domain.Escrow{}, err
	}
	e, err := scanEscrow(row)
	if err != nil {
		return domain.Escrow{}, translate(err)
	}
	return e, nil
}

func (t *tx) UpdateEscrow(ctx context.Context, e domain.Escrow) error {
	n, err := t.exec(ctx, psql.Update("escrows").
		Set("status", e.Status).
		Set("funded_at", e.FundedAt).
		Set("released_at", e.ReleasedAt).
		Set("refunded_at", e.RefundedAt).
		Where(sq.Eq{"id": e.ID}))
	if err != nil {
		return fmt.Errorf("pg: update escrow: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
