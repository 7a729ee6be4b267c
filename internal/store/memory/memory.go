// Package memory implements store.Store in process memory.
//
// A transaction holds the store lock for its whole duration and works on a
// copy of the state, which replaces the committed state only when fn succeeds.
package memory

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"trusthub.org/internal/domain"
	"trusthub.org/internal/ids"
	"trusthub.org/internal/store"
)

type state struct {
	users      map[string]domain.User
	tokens     map[string]domain.Token
	jobs       map[string]domain.Job
	milestones map[string]domain.Milestone
	escrows    map[string]domain.Escrow // keyed by job id
	disputes   map[string]domain.Dispute
}

func (s state) clone() state {
	return state{
		users:      maps.Clone(s.users),
		tokens:     maps.Clone(s.tokens),
		jobs:       maps.Clone(s.jobs),
		milestones: maps.Clone(s.milestones),
		escrows:    maps.Clone(s.escrows),
		disputes:   maps.Clone(s.disputes),
	}
}

// Store is safe for concurrent use; transactions are fully serialized.
type Store struct {
	mu  sync.Mutex
	cur state
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		cur: state{
			users:      map[string]domain.User{},
			tokens:     map[string]domain.Token{},
			jobs:       map[string]domain.Job{},
			milestones: map[string]domain.Milestone{},
			escrows:    map[string]domain.Escrow{},
			disputes:   map[string]domain.Dispute{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.cur.clone()
	if err := fn(&tx{st: &work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cur = work
	return nil
}

type tx struct {
	st  *state
	now func() time.Time
}

// users ---------------------------------------------------------------------

func (t *tx) CreateUser(_ context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	for _, existing := range t.st.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicate
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = t.now()
	}
	t.st.users[u.ID] = *u
	return nil
}

func (t *tx) UserByID(_ context.Context, id string) (domain.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (t *tx) UserByEmail(_ context.Context, email string) (domain.User, error) {
	for _, u := range t.st.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (t *tx) ListUsers(_ context.Context, f store.UserFilter) ([]domain.User, error) {
	var out []domain.User
	for _, u := range t.st.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.KYCStatus != "" && u.KYCStatus != f.KYCStatus {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) UpdateUserKYC(_ context.Context, id string, status domain.KYCStatus, verifiedAt *time.Time) error {
	u, ok := t.st.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.KYCStatus = status
	u.KYCVerifiedAt = verifiedAt
	t.st.users[id] = u
	return nil
}

// tokens --------------------------------------------------------------------

func (t *tx) CreateToken(_ context.Context, tok domain.Token) error {
	if _, ok := t.st.tokens[tok.Value]; ok {
		return store.ErrDuplicate
	}
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = t.now()
	}
	t.st.tokens[tok.Value] = tok
	return nil
}

func (t *tx) TokenUserID(_ context.Context, token string) (string, error) {
	tok, ok := t.st.tokens[token]
	if !ok {
		return "", store.ErrNotFound
	}
	return tok.UserID, nil
}

func (t *tx) DeleteToken(_ context.Context, token string) error {
	delete(t.st.tokens, token)
	return nil
}

// jobs ----------------------------------------------------------------------

func (t *tx) CreateJob(_ context.Context, j *domain.Job) error {
	if j.ID == "" {
		j.ID = ids.New()
	}
	if _, ok := t.st.jobs[j.ID]; ok {
		return store.ErrDuplicate
	}
	now := t.now()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = j.CreatedAt
	t.st.jobs[j.ID] = *j
	return nil
}

func (t *tx) JobByID(_ context.Context, id string, _ bool) (domain.Job, error) {
	j, ok := t.st.jobs[id]
	if !ok {
		return domain.Job{}, store.ErrNotFound
	}
	return j, nil
}

func (t *tx) ListJobs(_ context.Context, f store.JobFilter) ([]domain.Job, error) {
	var out []domain.Job
	for _, j := range t.st.jobs {
		if f.ApprovedOnly && !j.ApprovedByAdmin {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.After(out[k].CreatedAt)
		}
		return out[i].ID > out[k].ID
	})
	return out, nil
}

func (t *tx) UpdateJob(_ context.Context, j domain.Job) error {
	if _, ok := t.st.jobs[j.ID]; !ok {
		return store.ErrNotFound
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = t.now()
	}
	t.st.jobs[j.ID] = j
	return nil
}

// milestones ----------------------------------------------------------------

func (t *tx) CreateMilestone(_ context.Context, m *domain.Milestone) error {
	if _, ok := t.st.jobs[m.JobID]; !ok {
		return store.ErrNotFound
	}
	if m.ID == "" {
		m.ID = ids.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = t.now()
	}
	t.st.milestones[m.ID] = *m
	return nil
}

func (t *tx) MilestonesByJob(_ context.Context, jobID string) ([]domain.Milestone, error) {
	var out []domain.Milestone
	for _, m := range t.st.milestones {
		if m.JobID == jobID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// escrows -------------------------------------------------------------------

func (t *tx) CreateEscrow(_ context.Context, e *domain.Escrow) error {
	if _, ok := t.st.escrows[e.JobID]; ok {
		return store.ErrDuplicate
	}
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t.now()
	}
	t.st.escrows[e.JobID] = *e
	return nil
}

func (t *tx) EscrowByJob(_ context.Context, jobID string, _ bool) (domain.Escrow, error) {
	e, ok := t.st.escrows[jobID]
	if !ok {
		return domain.Escrow{}, store.ErrNotFound
	}
	return e, nil
}

func (t *tx) UpdateEscrow(_ context.Context, e domain.Escrow) error {
	if _, ok := t.st.escrows[e.JobID]; !ok {
		return store.ErrNotFound
	}
	t.st.escrows[e.JobID] = e
	return nil
}

// disputes ------------------------------------------------------------------

func (t *tx) CreateDispute(_ context.Context, d *domain.Dispute) error {
	if d.ID == "" {
		d.ID = ids.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = t.now()
	}
	t.st.disputes[d.ID] = *d
	return nil
}

func (t *tx) DisputeByID(_ context.Context, id string, _ bool) (domain.Dispute, error) {
	d, ok := t.st.disputes[id]
	if !ok {
		return domain.Dispute{}, store.ErrNotFound
	}
	return d, nil
}

func (t *tx) ListDisputes(_ context.Context, f store.DisputeFilter) ([]domain.Dispute, error) {
	var out []domain.Dispute
	for _, d := range t.st.disputes {
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (t *tx) UpdateDispute(_ context.Context, d domain.Dispute) error {
	if _, ok := t.st.disputes[d.ID]; !ok {
		return store.ErrNotFound
	}
	t.st.disputes[d.ID] = d
	return nil
}
