package federation

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goFedAuth/user"
)

// Resolution reports what Resolve did to produce the user.
type Resolution int

const (
	// ResolutionExisting means the provider id was already linked.
	ResolutionExisting Resolution = iota
	// ResolutionLinked means an account with the same email gained the provider id.
	ResolutionLinked
	// ResolutionCreated means a new account was created from the profile.
	ResolutionCreated
)

func (r Resolution) String() string {
	switch r {
	case ResolutionExisting:
		return "existing"
	case ResolutionLinked:
		return "linked"
	case ResolutionCreated:
		return "created"
	}
	return "unknown"
}

// DefaultRoles are the roles given to accounts created from a provider profile.
func DefaultRoles() map[user.Provider]user.Role {
	return map[user.Provider]user.Role{
		user.ProviderGoogle:   user.RoleBrand,
		user.ProviderFacebook: user.RoleUser,
	}
}

// Resolver maps verified profiles onto local users.
type Resolver struct {
	users user.Repository
	roles map[user.Provider]user.Role
}

// NewResolver returns a Resolver. roles overrides DefaultRoles per provider.
func NewResolver(users user.Repository, roles map[user.Provider]user.Role) *Resolver {
	merged := DefaultRoles()
	for p, r := range roles {
		if r.Valid() {
			merged[p] = r
		}
	}
	return &Resolver{users: users, roles: merged}
}

// Resolve describes the resolve operation and its observable behavior.
//
// Resolve looks the profile up by provider id, then by email, then creates
// a user. Linking by email sets the provider id, provider tag, picture (when
// present) and EmailVerified, and never touches the password hash or role.
// Facebook profiles without an email are never linked.
func (r *Resolver) Resolve(ctx context.Context, p *Profile) (*user.User, Resolution, error) {
	if p == nil || p.ExternalID == "" {
		return nil, 0, fmt.Errorf("%w: profile missing external id", ErrInvalidToken)
	}
	if p.Provider != user.ProviderGoogle && p.Provider != user.ProviderFacebook {
		return nil, 0, fmt.Errorf("unsupported provider %q", p.Provider)
	}

	u, res, err := r.resolveOnce(ctx, p)
	if errors.Is(err, user.ErrEmailTaken) || errors.Is(err, user.ErrProviderIDTaken) {
		// Lost a create race with a concurrent login for the same identity.
		return r.resolveOnce(ctx, p)
	}
	return u, res, err
}

func (r *Resolver) resolveOnce(ctx context.Context, p *Profile) (*user.User, Resolution, error) {
	existing, err := r.findByExternalID(ctx, p)
	if err == nil {
		return existing, ResolutionExisting, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, 0, err
	}

	if p.Email != "" {
		byEmail, err := r.users.FindByEmail(ctx, p.Email)
		switch {
		case err == nil:
			r.link(byEmail, p)
			if err := r.users.Update(ctx, byEmail); err != nil {
				return nil, 0, fmt.Errorf("link %s account: %w", p.Provider, err)
			}
			return byEmail, ResolutionLinked, nil
		case !errors.Is(err, user.ErrNotFound):
			return nil, 0, err
		}
	}

	created := &user.User{
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Email:         p.Email,
		Role:          r.roles[p.Provider],
		Provider:      p.Provider,
		PictureURL:    p.PictureURL,
		EmailVerified: p.EmailVerified,
	}
	setExternalID(created, p)
	if err := r.users.Create(ctx, created); err != nil {
		return nil, 0, fmt.Errorf("create %s account: %w", p.Provider, err)
	}
	return created, ResolutionCreated, nil
}

func (r *Resolver) findByExternalID(ctx context.Context, p *Profile) (*user.User, error) {
	if p.Provider == user.ProviderGoogle {
		return r.users.FindByGoogleID(ctx, p.ExternalID)
	}
	return r.users.FindByFacebookID(ctx, p.ExternalID)
}

func (r *Resolver) link(u *user.User, p *Profile) {
	setExternalID(u, p)
	u.Provider = p.Provider
	if p.PictureURL != "" {
		u.PictureURL = p.PictureURL
	}
	u.EmailVerified = p.EmailVerified
}

func setExternalID(u *user.User, p *Profile) {
	switch p.Provider {
	case user.ProviderGoogle:
		u.GoogleID = p.ExternalID
	case user.ProviderFacebook:
		u.FacebookID = p.ExternalID
	}
}
