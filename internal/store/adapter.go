package store

import (
	"context"
	"strings"

	"github.com/stormline/provision/internal/identity"
	"github.com/stormline/provision/internal/provisioning"
)

// identityAPI is the slice of the identity client the adapter needs.
// Narrowed to an interface so adapter tests can run against a fake.
type identityAPI interface {
	ListUsers(ctx context.Context) ([]identity.User, error)
	CreateUser(ctx context.Context, params identity.UserParams) (identity.User, error)
	UpdateUser(ctx context.Context, id string, params identity.UserParams) error
}

// profileAPI is the slice of the Postgres store the adapter needs.
type profileAPI interface {
	ListSuperAdmins(ctx context.Context) ([]provisioning.ExistingSuperAdmin, error)
	UpsertProfile(ctx context.Context, params provisioning.ProfileParams) error
	UpsertContractor(ctx context.Context, params provisioning.ContractorParams) error
}

// Adapter implements provisioning.Adapter over the identity admin API and
// the profile store.
//
// Identity lookups go through an email-keyed cache filled by one paged
// ListUsers sweep on first use and kept current by this adapter's own
// writes. That trades one bulk read for per-row admin API round trips, and
// matches the sequential Runner: the cache is not safe for concurrent use.
type Adapter struct {
	users    identityAPI
	profiles profileAPI

	authUsers map[string]provisioning.AuthUser // keyed by lowercased email
}

// NewAdapter wires the identity client and profile store into a
// provisioning.Adapter. Use one Adapter per run; the user cache holds a
// snapshot taken at first lookup.
func NewAdapter(users identityAPI, profiles profileAPI) *Adapter {
	return &Adapter{users: users, profiles: profiles}
}

func (a *Adapter) ListSuperAdmins(ctx context.Context) ([]provisioning.ExistingSuperAdmin, error) {
	return a.profiles.ListSuperAdmins(ctx)
}

func (a *Adapter) FindAuthUserByEmail(ctx context.Context, email string) (*provisioning.AuthUser, error) {
	if err := a.ensureAuthUsers(ctx); err != nil {
		return nil, err
	}

	user, ok := a.authUsers[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (a *Adapter) CreateAuthUser(ctx context.Context, params provisioning.AuthUserParams) (provisioning.AuthUser, error) {
	created, err := a.users.CreateUser(ctx, identity.UserParams{
		Email:     params.Email,
		Password:  params.TempPassword,
		FirstName: params.FirstName,
		LastName:  params.LastName,
	})
	if err != nil {
		return provisioning.AuthUser{}, err
	}

	user := provisioning.AuthUser{ID: created.ID, Email: created.Email}
	if a.authUsers != nil {
		a.authUsers[strings.ToLower(user.Email)] = user
	}
	return user, nil
}

func (a *Adapter) UpdateAuthUser(ctx context.Context, id string, params provisioning.AuthUserParams) error {
	err := a.users.UpdateUser(ctx, id, identity.UserParams{
		Email:     params.Email,
		Password:  params.TempPassword,
		FirstName: params.FirstName,
		LastName:  params.LastName,
	})
	if err != nil {
		return err
	}

	if a.authUsers != nil {
		email := strings.ToLower(params.Email)
		a.authUsers[email] = provisioning.AuthUser{ID: id, Email: email}
	}
	return nil
}

func (a *Adapter) UpsertProfile(ctx context.Context, params provisioning.ProfileParams) error {
	return a.profiles.UpsertProfile(ctx, params)
}

func (a *Adapter) UpsertContractor(ctx context.Context, params provisioning.ContractorParams) error {
	return a.profiles.UpsertContractor(ctx, params)
}

// ensureAuthUsers fills the email cache on first use.
func (a *Adapter) ensureAuthUsers(ctx context.Context) error {
	if a.authUsers != nil {
		return nil
	}

	users, err := a.users.ListUsers(ctx)
	if err != nil {
		return err
	}

	a.authUsers = make(map[string]provisioning.AuthUser, len(users))
	for _, user := range users {
		a.authUsers[strings.ToLower(user.Email)] = provisioning.AuthUser{
			ID:    user.ID,
			Email: strings.ToLower(user.Email),
		}
	}
	return nil
}
