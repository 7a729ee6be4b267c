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

var userColumns = []string{
	"id", "name", "email", "password_hash", "avatar", "role", "kyc_status", "kyc_verified_at",
	"badge", "trust_score", "coalesce(company_name, '')", "coalesce(tax_id, '')",
	"coalesce(bio, '')", "coalesce(phone, '')", "created_at",
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u          domain.User
		verifiedAt sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Avatar, &u.Role, &u.KYCStatus, &verifiedAt,
		&u.Badge, &u.TrustScore, &u.CompanyName, &u.TaxID, &u.Bio, &u.Phone, &u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	if verifiedAt.Valid {
		v := verifiedAt.Time
		u.KYCVerifiedAt = &v
	}
	return u, nil
}

func (t *tx) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	row, err := t.getRow(ctx, psql.Insert("users").
		Columns("id", "name", "email", "password_hash", "avatar", "role", "kyc_status",
			"kyc_verified_at", "badge", "trust_score", "company_name", "tax_id", "bio", "phone").
		Values(u.ID, u.Name, u.Email, u.PasswordHash, u.Avatar, u.Role, u.KYCStatus,
			u.KYCVerifiedAt, u.Badge, u.TrustScore, nullString(u.CompanyName), nullString(u.TaxID), nullString(u.Bio), nullString(u.Phone)).
		Suffix("RETURNING created_at"))
	if err != nil {
		return err
	}
	if err := row.Scan(&u.CreatedAt); err != nil {
		return fmt.Errorf("pg: insert user: %w", translate(err))
	}
	return nil
}

func (t *tx) UserByID(ctx context.Context, id string) (domain.User, error) {
	row, err := t.getRow(ctx, psql.Select(userColumns...).From("users").Where(sq.Eq{"id": id}))
	if err != nil {
		return domain.User{}, err
	}
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, translate(err)
	}
	return u, nil
}

func (t *tx) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	row, err := t.getRow(ctx, psql.Select(userColumns...).From("users").Where("lower(email) = lower(?)", email))
	if err != nil {
		return domain.User{}, err
	}
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, translate(err)
	}
	return u, nil
}

func (t *tx) ListUsers(ctx context.Context, f store.UserFilter) ([]domain.User, error) {
	b := psql.Select(userColumns...).From("users").OrderBy("created_at ASC", "id ASC")
	if f.Role != "" {
		b = b.Where(sq.Eq{"role": f.Role})
	}
	if f.KYCStatus != "" {
		b = b.Where(sq.Eq{"kyc_status": f.KYCStatus})
	}
	rows, err := t.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("pg: list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("pg: scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (t *tx) UpdateUserKYC(ctx context.Context, id string, status domain.KYCStatus, verifiedAt *time.Time) error {
	n, err := t.exec(ctx, psql.Update("users").
		Set("kyc_status", status).
		Set("kyc_verified_at", verifiedAt).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("pg: update kyc: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) CreateToken(ctx context.Context, tok domain.Token) error {
	if _, err := t.exec(ctx, psql.Insert("tokens").
		Columns("token", "user_id").
		Values(tok.Value, tok.UserID)); err != nil {
		return fmt.Errorf("pg: insert token: %w", err)
	}
	return nil
}

func (t *tx) TokenUserID(ctx context.Context, token string) (string, error) {
	row, err := t.getRow(ctx, psql.Select("user_id").From("tokens").Where(sq.Eq{"token": token}))
	if err != nil {
		return "", err
	}
	var userID string
	if err := row.Scan(&userID); err != nil {
		return "", translate(err)
	}
	return userID, nil
}

func (t *tx) DeleteToken(ctx context.Context, token string) error {
	if _, err := t.exec(ctx, psql.Delete("tokens").Where(sq.Eq{"token": token})); err != nil {
		return fmt.Errorf("pg: delete token: %w", err)
	}
	return nil
}
