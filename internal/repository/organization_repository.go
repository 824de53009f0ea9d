package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// OrganizationRepository resolves tenants.
type OrganizationRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*domain.Organization, error)
	// FindByMemberEmail returns the organization of the oldest account with
	// that email.
	FindByMemberEmail(ctx context.Context, email string) (*domain.Organization, error)
	// EnsureBySlug creates org unless one with the same slug exists and returns
	// the stored row either way.
	EnsureBySlug(ctx context.Context, org *domain.Organization) (*domain.Organization, error)
}

type organizationRepository struct {
	pool *pgxpool.Pool
}

// NewOrganizationRepository returns a Postgres-backed implementation.
func NewOrganizationRepository(pool *pgxpool.Pool) OrganizationRepository {
	return &organizationRepository{pool: pool}
}

const organizationColumns = `o.id, o.slug, o.subdomain, o.name, o.allow_public_intake, o.sla_policy, o.created_at, o.updated_at`

func (r *organizationRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations o WHERE o.id=$1`
	return scanOrganization(r.pool.QueryRow(ctx, query, id))
}

func (r *organizationRepository) GetBySubdomain(ctx context.Context, subdomain string) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations o WHERE o.subdomain=LOWER($1)`
	return scanOrganization(r.pool.QueryRow(ctx, query, subdomain))
}

func (r *organizationRepository) FindByMemberEmail(ctx context.Context, email string) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + `
        FROM organizations o JOIN users u ON u.org_id = o.id
        WHERE LOWER(u.email)=LOWER($1)
        ORDER BY u.created_at ASC LIMIT 1`
	return scanOrganization(r.pool.QueryRow(ctx, query, email))
}

func (r *organizationRepository) EnsureBySlug(ctx context.Context, org *domain.Organization) (*domain.Organization, error) {
	policy, err := encodeSLAPolicy(org.SLAPolicy)
	if err != nil {
		return nil, err
	}
	const insert = `
        INSERT INTO organizations (slug, subdomain, name, allow_public_intake, sla_policy)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (slug) DO NOTHING`
	if _, err := r.pool.Exec(ctx, insert, org.Slug, org.Subdomain, org.Name, org.AllowPublicIntake, policy); err != nil {
		return nil, err
	}
	query := `SELECT ` + organizationColumns + ` FROM organizations o WHERE o.slug=$1`
	return scanOrganization(r.pool.QueryRow(ctx, query, org.Slug))
}

func scanOrganization(row pgx.Row) (*domain.Organization, error) {
	var (
		org    domain.Organization
		policy []byte
	)
	if err := row.Scan(
		&org.ID,
		&org.Slug,
		&org.Subdomain,
		&org.Name,
		&org.AllowPublicIntake,
		&policy,
		&org.CreatedAt,
		&org.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(policy) > 0 {
		if err := json.Unmarshal(policy, &org.SLAPolicy); err != nil {
			return nil, fmt.Errorf("decode sla policy for org %s: %w", org.ID, err)
		}
	}
	return &org, nil
}

func encodeSLAPolicy(policy domain.SLAPolicy) ([]byte, error) {
	if len(policy) == 0 {
		return nil, nil
	}
	return json.Marshal(policy)
}
