// Package store implements the reconciler's Adapter against the real
// backends: the profiles/subcontractors tables in Postgres and the identity
// store's admin API.
package store

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stormline/provision/internal/provisioning"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// ProfileStore reads and writes the profiles and subcontractors tables.
type ProfileStore struct {
	db DBTX
}

// NewProfileStore creates a store over the given connection or pool.
func NewProfileStore(db DBTX) *ProfileStore {
	return &ProfileStore{db: db}
}

// ListSuperAdmins returns every profile currently holding the SUPER_ADMIN
// role. Emails are lowercased; profiles without an email are skipped.
func (s *ProfileStore) ListSuperAdmins(ctx context.Context) ([]provisioning.ExistingSuperAdmin, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, email FROM profiles WHERE role = 'SUPER_ADMIN' AND email IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("querying SUPER_ADMIN profiles: %w", err)
	}
	defer rows.Close()

	var admins []provisioning.ExistingSuperAdmin
	for rows.Next() {
		var id uuid.UUID
		var email string
		if err := rows.Scan(&id, &email); err != nil {
			return nil, fmt.Errorf("scanning SUPER_ADMIN profile: %w", err)
		}
		admins = append(admins, provisioning.ExistingSuperAdmin{
			ID:    id.String(),
			Email: strings.ToLower(email),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading SUPER_ADMIN profiles: %w", err)
	}
	return admins, nil
}

// UpsertProfile writes the profile row keyed by the identity id, reactivating
// the account and marking the email verified. Idempotent on id.
func (s *ProfileStore) UpsertProfile(ctx context.Context, params provisioning.ProfileParams) error {
	id, err := uuid.Parse(params.ID)
	if err != nil {
		return fmt.Errorf("profile id %q is not a UUID: %w", params.ID, err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO profiles (id, email, first_name, last_name, role, is_active, is_email_verified, must_reset_password, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, true, $6, now())
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			role = EXCLUDED.role,
			is_active = true,
			is_email_verified = true,
			must_reset_password = EXCLUDED.must_reset_password,
			updated_at = now()`,
		id, params.Email, params.FirstName, params.LastName, string(params.Role), params.MustResetPassword)
	if err != nil {
		return fmt.Errorf("upserting profile %s: %w", params.Email, err)
	}
	return nil
}

// UpsertContractor writes the business record keyed by profile id. A
// re-provisioned contractor keeps their existing row; only the business
// email, approval status, and eligibility are refreshed. Idempotent on
// profile id.
func (s *ProfileStore) UpsertContractor(ctx context.Context, params provisioning.ContractorParams) error {
	profileID, err := uuid.Parse(params.ProfileID)
	if err != nil {
		return fmt.Errorf("contractor profile id %q is not a UUID: %w", params.ProfileID, err)
	}

	var existingID uuid.UUID
	err = s.db.QueryRow(ctx,
		`SELECT id FROM subcontractors WHERE profile_id = $1`, profileID).Scan(&existingID)
	switch {
	case err == nil:
		_, err = s.db.Exec(ctx, `
			UPDATE subcontractors SET
				business_email = $2,
				onboarding_status = 'APPROVED',
				is_eligible_for_assignment = true,
				eligibility_reason = NULL,
				updated_at = now()
			WHERE id = $1`,
			existingID, params.Email)
		if err != nil {
			return fmt.Errorf("updating contractor record %s: %w", params.Email, err)
		}
		return nil

	case errors.Is(err, pgx.ErrNoRows):
		businessName := strings.TrimSpace(params.FirstName + " " + params.LastName)
		if businessName == "" {
			businessName = params.Email
		}
		_, err = s.db.Exec(ctx, `
			INSERT INTO subcontractors (id, profile_id, business_name, business_email, onboarding_status, is_eligible_for_assignment, eligibility_reason)
			VALUES ($1, $2, $3, $4, 'APPROVED', true, NULL)`,
			uuid.New(), profileID, businessName, params.Email)
		if err != nil {
			return fmt.Errorf("creating contractor record %s: %w", params.Email, err)
		}
		return nil

	default:
		return fmt.Errorf("querying contractor record %s: %w", params.Email, err)
	}
}

// ContractorCodeUUID derives the stable subcontractor id for a contractor
// code (an md5 of "contractor:<CODE>" laid out as a UUID). The same code
// always maps to the same id, so re-running an upsert is harmless.
func ContractorCodeUUID(code string) uuid.UUID {
	sum := md5.Sum([]byte("contractor:" + code))
	id, _ := uuid.FromBytes(sum[:])
	return id
}

// UpsertContractorWithCode writes the business record under the id derived
// from the contractor code. A profile whose existing contractor record
// carries a different id is left alone and the call fails; remapping a
// contractor code is a manual operation.
func (s *ProfileStore) UpsertContractorWithCode(ctx context.Context, code string, params provisioning.ContractorParams) error {
	profileID, err := uuid.Parse(params.ProfileID)
	if err != nil {
		return fmt.Errorf("contractor profile id %q is not a UUID: %w", params.ProfileID, err)
	}
	want := ContractorCodeUUID(code)

	var existingID uuid.UUID
	err = s.db.QueryRow(ctx,
		`SELECT id FROM subcontractors WHERE profile_id = $1`, profileID).Scan(&existingID)
	switch {
	case err == nil:
		if existingID != want {
			return fmt.Errorf("profile already has contractor record %s; refusing to remap to %s", existingID, want)
		}
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return fmt.Errorf("querying contractor record %s: %w", params.Email, err)
	}

	businessName := strings.TrimSpace(params.FirstName + " " + params.LastName)
	if businessName == "" {
		businessName = params.Email
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO subcontractors (id, profile_id, business_name, business_email, onboarding_status, is_eligible_for_assignment, eligibility_reason)
		VALUES ($1, $2, $3, $4, 'APPROVED', true, NULL)
		ON CONFLICT (profile_id) DO UPDATE SET
			business_name = EXCLUDED.business_name,
			business_email = EXCLUDED.business_email,
			onboarding_status = 'APPROVED',
			is_eligible_for_assignment = true,
			eligibility_reason = NULL,
			updated_at = now()`,
		want, profileID, businessName, params.Email)
	if err != nil {
		return fmt.Errorf("upserting contractor record %s: %w", params.Email, err)
	}
	return nil
}
