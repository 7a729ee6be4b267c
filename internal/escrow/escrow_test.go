package escrow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"trusthub.org/internal/apperr"
	"trusthub.org/internal/domain"
	"trusthub.org/internal/store"
	"trusthub.org/internal/store/memory"
)

func TestComputeFee(t *testing.T) {
	cases := []struct {
		budget string
		tier   domain.ServiceTier
		want   string
	}{
		{"1000.00", domain.TierGuidedTrust, "70.00"},
		{"500.00", domain.TierDirectTrust, "10.00"},
		{"1000.00", domain.TierDelegatedTrust, "150.00"},
		{"1000.00", domain.ServiceTier("legacy"), "50.00"},
		{"33.33", domain.TierGuidedTrust, "2.33"},
		{"0.10", domain.TierDirectTrust, "0.00"},
	}
	for _, tc := range cases {
		got := ComputeFee(domain.MustAmount(tc.budget), tc.tier)
		if got.String() != tc.want {
			t.Errorf("ComputeFee(%s, %s) = %s, want %s", tc.budget, tc.tier, got, tc.want)
		}
	}
}

func seedJob(t *testing.T, st store.Store, budget string, tier domain.ServiceTier) domain.Job {
	t.Helper()
	ctx := context.Background()
	j := domain.Job{Title: "t", Description: "d", ServiceType: tier, Budget: domain.MustAmount(budget),
		ClientID: "client", Status: domain.JobActive, ApprovedByAdmin: true}
	if err := st.WithTx(ctx, func(tx store.Tx) error { return tx.CreateJob(ctx, &j) }); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return j
}

func TestCreateEscrow(t *testing.T) {
	st := memory.New()
	svc := NewService(st)
	ctx := context.Background()
	j := seedJob(t, st, "1000", domain.TierGuidedTrust)

	e, err := svc.Create(ctx, j.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.Status != domain.EscrowCreated || e.TotalAmount.String() != "1000.00" || e.PlatformFee.String() != "70.00" {
		t.Fatalf("unexpected escrow %+v", e)
	}
	if _, err := svc.Create(ctx, j.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict on second create, got %v", err)
	}
	got, err := svc.ForJob(ctx, j.ID)
	if err != nil || got.ID != e.ID {
		t.Fatalf("ForJob = %+v, %v", got, err)
	}
}

func TestCreateEscrowErrors(t *testing.T) {
	svc := NewService(memory.New())
	ctx := context.Background()
	if _, err := svc.Create(ctx, ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Create(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.ForJob(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentCreateYieldsOneEscrow(t *testing.T) {
	st := memory.New()
	svc := NewService(st)
	j := seedJob(t, st, "250", domain.TierDirectTrust)

	const n = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		conflict int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), j.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrConflict):
				conflict++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 || conflict != n-1 {
		t.Fatalf("ok=%d conflict=%d", ok, conflict)
	}
}
