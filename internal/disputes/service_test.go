package disputes

import (
	"context"
	"errors"
	"testing"

	"trusthub.org/internal/apperr"
	"trusthub.org/internal/domain"
	"trusthub.org/internal/escrow"
	"trusthub.org/internal/store"
	"trusthub.org/internal/store/memory"
)

type fixture struct {
	st         *memory.Store
	svc        *Service
	client     domain.User
	arbitrator domain.User
	job        domain.Job
}

func newFixture(t *testing.T, status domain.JobStatus, withEscrow bool) fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	f := fixture{
		st:         st,
		svc:        NewService(st),
		client:     domain.User{Name: "Acme", Email: "acme@x.com", Role: domain.RoleCompany},
		arbitrator: domain.User{Name: "Judge", Email: "judge@x.com", Role: domain.RoleArbitrator},
	}
	err := st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateUser(ctx, &f.client); err != nil {
			return err
		}
		if err := tx.CreateUser(ctx, &f.arbitrator); err != nil {
			return err
		}
		f.job = domain.Job{Title: "t", Description: "d", ServiceType: domain.TierGuidedTrust,
			Budget: domain.MustAmount("1000"), ClientID: f.client.ID, Status: status, ApprovedByAdmin: true}
		return tx.CreateJob(ctx, &f.job)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if withEscrow {
		if _, err := escrow.NewService(st).Create(ctx, f.job.ID); err != nil {
			t.Fatalf("create escrow: %v", err)
		}
	}
	return f
}

func (f fixture) state(t *testing.T) (domain.Job, domain.Escrow) {
	t.Helper()
	ctx := context.Background()
	var (
		j domain.Job
		e domain.Escrow
	)
	err := f.st.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if j, err = tx.JobByID(ctx, f.job.ID, false); err != nil {
			return err
		}
		e, err = tx.EscrowByJob(ctx, f.job.ID, false)
		return err
	})
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	return j, e
}

func TestOpenMovesJobAndEscrow(t *testing.T) {
	f := newFixture(t, domain.JobDelivered, true)
	d, err := f.svc.Open(context.Background(), f.client.ID, OpenInput{JobID: f.job.ID, Reason: "late"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if d.Status != domain.DisputeOpen || d.OpenedBy != f.client.ID {
		t.Fatalf("unexpected dispute %+v", d)
	}
	j, e := f.state(t)
	if j.Status != domain.JobDisputed || e.Status != domain.EscrowDisputed {
		t.Fatalf("job %s escrow %s, want disputed/disputed", j.Status, e.Status)
	}
}

func TestOpenLeavesEarlyJobStatus(t *testing.T) {
	f := newFixture(t, domain.JobActive, true)
	if _, err := f.svc.Open(context.Background(), f.client.ID, OpenInput{JobID: f.job.ID, Reason: "scope"}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	j, e := f.state(t)
	if j.Status != domain.JobActive || e.Status != domain.EscrowDisputed {
		t.Fatalf("job %s escrow %s", j.Status, e.Status)
	}
}

func TestOpenValidation(t *testing.T) {
	f := newFixture(t, domain.JobActive, false)
	ctx := context.Background()
	if _, err := f.svc.Open(ctx, f.client.ID, OpenInput{JobID: f.job.ID}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.svc.Open(ctx, f.client.ID, OpenInput{JobID: "missing", Reason: "x"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAssign(t *testing.T) {
	f := newFixture(t, domain.JobInProgress, true)
	ctx := context.Background()
	d, err := f.svc.Open(ctx, f.client.ID, OpenInput{JobID: f.job.ID, Reason: "quality"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	cases := []struct {
		name string
		id   string
		arb  string
		kind error
	}{
		{"missing dispute", "missing", f.arbitrator.ID, apperr.ErrNotFound},
		{"missing arbitrator", d.ID, "", apperr.ErrValidation},
		{"unknown arbitrator", d.ID, "ghost", apperr.ErrValidation},
		{"wrong role", d.ID, f.client.ID, apperr.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Assign(ctx, tc.id, tc.arb); !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
		})
	}

	got, err := f.svc.Assign(ctx, d.ID, f.arbitrator.ID)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if got.Status != domain.DisputeInReview || got.AssignedTo != f.arbitrator.ID {
		t.Fatalf("unexpected dispute %+v", got)
	}
}

func TestResolveSettlesEscrow(t *testing.T) {
	for _, tc := range []struct {
		winner string
		want   domain.EscrowStatus
	}{
		{"client", domain.EscrowRefunded},
		{"expert", domain.EscrowReleased},
	} {
		t.Run(tc.winner, func(t *testing.T) {
			f := newFixture(t, domain.JobDelivered, true)
			ctx := context.Background()
			d, err := f.svc.Open(ctx, f.client.ID, OpenInput{JobID: f.job.ID, Reason: "r"})
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			res, err := f.svc.Resolve(ctx, d.ID, ResolveInput{Resolution: "decided", Winner: tc.winner})
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if res.Status != domain.DisputeResolved || res.ResolvedAt == nil || string(res.Decision) != tc.winner {
				t.Fatalf("unexpected dispute %+v", res)
			}
			_, e := f.state(t)
			if e.Status != tc.want {
				t.Fatalf("escrow %s, want %s", e.Status, tc.want)
			}
			if tc.want == domain.EscrowReleased && e.ReleasedAt == nil {
				t.Fatal("expected release timestamp")
			}
			if tc.want == domain.EscrowRefunded && e.RefundedAt == nil {
				t.Fatal("expected refund timestamp")
			}

			if _, err := f.svc.Resolve(ctx, d.ID, ResolveInput{Resolution: "again", Winner: "client"}); !errors.Is(err, apperr.ErrInvalidState) {
				t.Fatalf("expected invalid state on re-resolve, got %v", err)
			}
			if _, err := f.svc.Assign(ctx, d.ID, f.arbitrator.ID); !errors.Is(err, apperr.ErrInvalidState) {
				t.Fatalf("expected invalid state on assign after resolve, got %v", err)
			}
		})
	}
}

func TestResolveValidation(t *testing.T) {
	f := newFixture(t, domain.JobDelivered, false)
	ctx := context.Background()
	d, err := f.svc.Open(ctx, f.client.ID, OpenInput{JobID: f.job.ID, Reason: "r"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, in := range []ResolveInput{{Winner: "client"}, {Resolution: "x"}, {Resolution: "x", Winner: "both"}} {
		if _, err := f.svc.Resolve(ctx, d.ID, in); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("Resolve(%+v): expected validation error, got %v", in, err)
		}
	}
	if _, err := f.svc.Resolve(ctx, "missing", ResolveInput{Resolution: "x", Winner: "client"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	// No escrow: the dispute still resolves.
	if _, err := f.svc.Resolve(ctx, d.ID, ResolveInput{Resolution: "x", Winner: "expert"}); err != nil {
		t.Fatalf("Resolve without escrow: %v", err)
	}
}

func TestListFilters(t *testing.T) {
	f := newFixture(t, domain.JobDelivered, false)
	ctx := context.Background()
	a, _ := f.svc.Open(ctx, f.client.ID, OpenInput{JobID: f.job.ID, Reason: "a"})
	if _, err := f.svc.Open(ctx, f.client.ID, OpenInput{JobID: f.job.ID, Reason: "b"}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := f.svc.Assign(ctx, a.ID, f.arbitrator.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	all, err := f.svc.List(ctx, "")
	if err != nil || len(all) != 2 {
		t.Fatalf("List() = %d, %v", len(all), err)
	}
	review, err := f.svc.List(ctx, "in_review")
	if err != nil || len(review) != 1 || review[0].ID != a.ID {
		t.Fatalf("List(in_review) = %+v, %v", review, err)
	}
	if _, err := f.svc.List(ctx, "under_review"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, err := f.svc.Get(ctx, a.ID)
	if err != nil || got.AssignedTo != f.arbitrator.ID {
		t.Fatalf("Get = %+v, %v", got, err)
	}
}
