package profilerepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/skyporter/luggage-api/internal/adapters/postgres"
	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/profilerepo"
)

// Repo is a Postgres implementation of profilerepo.Repository.
type Repo struct {
	pool   *pgxpool.Pool
	issuer string
}

func NewRepo(pool *pgxpool.Pool, jwtIssuer string) *Repo {
	return &Repo{pool: pool, issuer: jwtIssuer}
}

const selectProfile = `
	SELECT
		external_id,
		subject_sub,
		role,
		status,
		full_name,
		email,
		phone,
		company_name,
		verified,
		created_at,
		updated_at
	FROM profiles
`

func (r *Repo) Create(ctx context.Context, p domain.Profile) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(p.ID))
	if err != nil {
		return fmt.Errorf("invalid profile id: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO profiles (
			external_id,
			subject_iss,
			subject_sub,
			role,
			status,
			full_name,
			email,
			phone,
			company_name,
			verified,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		id,
		r.issuer,
		string(p.Subject),
		string(p.Role),
		string(p.Status),
		p.FullName,
		p.Email,
		p.Phone,
		p.CompanyName,
		p.Verified,
		p.CreatedAt.UTC(),
		p.UpdatedAt.UTC(),
	)
	return mapWriteError(err)
}

func (r *Repo) Update(ctx context.Context, p domain.Profile) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(p.ID))
	if err != nil {
		return profilerepo.ErrNotFound
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		existing, err := getProfile(ctx, tx, selectProfile+` WHERE external_id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		if existing.Subject != p.Subject {
			return profilerepo.ErrSubjectAlreadyBound
		}

		ct, err := tx.Exec(ctx, `
			UPDATE profiles
			SET role = $2,
			    status = $3,
			    full_name = $4,
			    email = $5,
			    phone = $6,
			    company_name = $7,
			    verified = $8,
			    updated_at = $9
			WHERE external_id = $1
		`,
			id,
			string(p.Role),
			string(p.Status),
			p.FullName,
			p.Email,
			p.Phone,
			p.CompanyName,
			p.Verified,
			p.UpdatedAt.UTC(),
		)
		if err != nil {
			return mapWriteError(err)
		}
		if ct.RowsAffected() == 0 {
			return profilerepo.ErrNotFound
		}
		return nil
	})
}

func (r *Repo) Delete(ctx context.Context, id domain.ProfileID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return profilerepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM profiles WHERE external_id = $1`, uid)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return profilerepo.ErrInUse
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return profilerepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.ProfileID) (domain.Profile, error) {
	if r.pool == nil {
		return domain.Profile{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Profile{}, profilerepo.ErrNotFound
	}
	return getProfile(ctx, r.pool, selectProfile+` WHERE external_id = $1`, uid)
}

func (r *Repo) GetBySubject(ctx context.Context, subject domain.SubjectID) (domain.Profile, error) {
	if r.pool == nil {
		return domain.Profile{}, errors.New("nil postgres pool")
	}
	return getProfile(ctx, r.pool, selectProfile+` WHERE subject_iss = $1 AND subject_sub = $2`, r.issuer, string(subject))
}

func (r *Repo) List(ctx context.Context, f profilerepo.Filter) ([]domain.Profile, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}

	var sb strings.Builder
	sb.WriteString(selectProfile)
	sb.WriteString(" WHERE true ")
	args := make([]any, 0, 4)
	if f.Role != "" {
		args = append(args, string(f.Role))
		sb.WriteString(fmt.Sprintf(" AND role = $%d ", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		sb.WriteString(fmt.Sprintf(" AND status = $%d ", len(args)))
	}
	for _, tok := range tokenize(f.Query) {
		// Match all tokens (AND) in a case-insensitive way.
		args = append(args, "%"+tok+"%")
		sb.WriteString(fmt.Sprintf(" AND lower(full_name || ' ' || email || ' ' || coalesce(company_name, '')) LIKE $%d ", len(args)))
	}
	sb.WriteString(" ORDER BY lower(full_name) ASC, external_id ASC ")

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// --- helpers ---

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getProfile(ctx context.Context, q queryRower, sql string, args ...any) (domain.Profile, error) {
	return scanProfile(q.QueryRow(ctx, sql, args...))
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	pe, ok := postgres.AsPgError(err)
	if !ok || pe.Code != postgres.UniqueViolationCode {
		return err
	}
	switch pe.ConstraintName {
	case "profiles_subject_unique":
		return profilerepo.ErrSubjectAlreadyBound
	case "profiles_external_id_unique":
		return profilerepo.ErrAlreadyExists
	case "profiles_email_unique":
		return profilerepo.ErrEmailTaken
	default:
		return err
	}
}

func tokenize(s string) []string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

func scanProfile(row interface {
	Scan(dest ...any) error
}) (domain.Profile, error) {
	var (
		externalID  uuid.UUID
		sub         string
		role        string
		status      string
		fullName    string
		email       string
		phone       *string
		companyName *string
		verified    bool
		createdAt   time.Time
		updatedAt   time.Time
	)
	if err := row.Scan(
		&externalID,
		&sub,
		&role,
		&status,
		&fullName,
		&email,
		&phone,
		&companyName,
		&verified,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, profilerepo.ErrNotFound
		}
		return domain.Profile{}, err
	}
	return domain.Profile{
		ID:          domain.ProfileID(externalID.String()),
		Subject:     domain.SubjectID(sub),
		Role:        domain.Role(role),
		Status:      domain.ProfileStatus(status),
		FullName:    fullName,
		Email:       email,
		Phone:       phone,
		CompanyName: companyName,
		Verified:    verified,
		CreatedAt:   createdAt.UTC(),
		UpdatedAt:   updatedAt.UTC(),
	}, nil
}
