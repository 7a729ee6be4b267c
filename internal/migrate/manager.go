// Package migrate applies versioned PostgreSQL schema files.
//
// A source tree holds pairs named NNNN_description.up.sql and
// NNNN_description.down.sql. Each applied version is recorded in a
// bookkeeping table inside the same transaction as its DDL, so a failed
// file leaves neither schema changes nor a record behind.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"
)

const defaultTable = "schema_migrations"

const (
	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// ErrNothingApplied is returned by Down when no version is recorded.
var ErrNothingApplied = errors.New("migrate: no applied versions")

// Migration is one schema version found in the source tree.
type Migration struct {
	Version string
	up      string
	down    string
}

// Reversible reports whether a down file exists for the version.
func (m Migration) Reversible() bool { return m.down != "" }

// State pairs a migration with the time it was applied, if ever.
type State struct {
	Version   string
	AppliedAt *time.Time
}

// Manager runs migrations from an fs.FS against a database.
type Manager struct {
	db    *sql.DB
	src   fs.FS
	table string
}

// Option configures a Manager.
type Option func(*Manager)

// WithTable overrides the bookkeeping table name.
func WithTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.table = name
		}
	}
}

func NewManager(db *sql.DB, src fs.FS, opts ...Option) *Manager {
	m := &Manager{db: db, src: src, table: defaultTable}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies every version that is not yet recorded, in version order.
func (m *Manager) Up(ctx context.Context) error {
	all, err := Load(m.src)
	if err != nil {
		return err
	}
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	for _, mig := range all {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		err := m.inTx(ctx, func(tx *sql.Tx) error {
			if err := m.run(ctx, tx, mig.up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				fmt.Sprintf(`insert into %s (version) values ($1)`, m.table), mig.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("migrate: up %s: %w", mig.Version, err)
		}
	}
	return nil
}

// Down reverts the highest applied version.
func (m *Manager) Down(ctx context.Context) error {
	all, err := Load(m.src)
	if err != nil {
		return err
	}
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return ErrNothingApplied
	}
	versions := make([]string, 0, len(applied))
	for v := range applied {
		versions = append(versions, v)
	}
	latest := slices.Max(versions)

	i := slices.IndexFunc(all, func(mig Migration) bool { return mig.Version == latest })
	if i < 0 {
		return fmt.Errorf("migrate: version %s is applied but missing from the source tree", latest)
	}
	if !all[i].Reversible() {
		return fmt.Errorf("migrate: version %s has no %s file", latest, downSuffix)
	}
	err = m.inTx(ctx, func(tx *sql.Tx) error {
		if err := m.run(ctx, tx, all[i].down); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			fmt.Sprintf(`delete from %s where version = $1`, m.table), latest)
		return err
	})
	if err != nil {
		return fmt.Errorf("migrate: down %s: %w", latest, err)
	}
	return nil
}

// Status lists every known version with its applied time. Versions recorded
// in the database but absent from the tree are listed last.
func (m *Manager) Status(ctx context.Context) ([]State, error) {
	all, err := Load(m.src)
	if err != nil {
		return nil, err
	}
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]State, 0, len(all))
	for _, mig := range all {
		st := State{Version: mig.Version}
		if at, ok := applied[mig.Version]; ok {
			st.AppliedAt = &at
			delete(applied, mig.Version)
		}
		out = append(out, st)
	}
	var orphans []string
	for v := range applied {
		orphans = append(orphans, v)
	}
	slices.Sort(orphans)
	for _, v := range orphans {
		at := applied[v]
		out = append(out, State{Version: v, AppliedAt: &at})
	}
	return out, nil
}

// Load reads the migration pairs at the root of src, sorted by version.
// An up file is required for every version.
func Load(src fs.FS) ([]Migration, error) {
	if src == nil {
		return nil, errors.New("migrate: no source tree")
	}
	entries, err := fs.ReadDir(src, ".")
	if err != nil {
		return nil, fmt.Errorf("migrate: read source: %w", err)
	}
	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		var version string
		var up bool
		switch {
		case strings.HasSuffix(name, upSuffix):
			version, up = strings.TrimSuffix(name, upSuffix), true
		case strings.HasSuffix(name, downSuffix):
			version = strings.TrimSuffix(name, downSuffix)
		default:
			continue
		}
		mig := byVersion[version]
		if mig == nil {
			mig = &Migration{Version: version}
			byVersion[version] = mig
		}
		if up {
			mig.up = name
		} else {
			mig.down = name
		}
	}
	out := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.up == "" {
			return nil, fmt.Errorf("migrate: version %s has no %s file", mig.Version, upSuffix)
		}
		out = append(out, *mig)
	}
	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return out, nil
}

func (m *Manager) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, fmt.Sprintf(`create table if not exists %s (
	version text primary key,
	applied_at timestamptz not null default now()
)`, m.table))
	if err != nil {
		return fmt.Errorf("migrate: bookkeeping table: %w", err)
	}
	return nil
}

func (m *Manager) applied(ctx context.Context) (map[string]time.Time, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`select version, applied_at from %s`, m.table))
	if err != nil {
		return nil, fmt.Errorf("migrate: list applied: %w", err)
	}
	defer rows.Close()
	out := make(map[string]time.Time)
	for rows.Next() {
		var (
			v  string
			at time.Time
		)
		if err := rows.Scan(&v, &at); err != nil {
			return nil, err
		}
		out[v] = at
	}
	return out, rows.Err()
}

// run sends a whole file in one call. Without bind arguments the pgx driver
// uses the simple query protocol, which accepts several statements.
func (m *Manager) run(ctx context.Context, tx *sql.Tx, file string) error {
	body, err := fs.ReadFile(m.src, file)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(body)) == "" {
		return nil
	}
	_, err = tx.ExecContext(ctx, string(body))
	return err
}

func (m *Manager) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
