package federation

import (
	"context"
	"testing"

	"github.com/MrEthical07/goFedAuth/user"
)

func seedLocal(t *testing.T, repo *user.MemoryRepository, email string) *user.User {
	t.Helper()
	u := &user.User{
		FirstName:    "Local",
		Email:        email,
		PasswordHash: "$argon2id$stub",
		Role:         user.RoleAdmin,
		Provider:     user.ProviderLocal,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return u
}

func TestResolveLinksGoogleToExistingEmail(t *testing.T) {
	repo := user.NewMemoryRepository()
	local := seedLocal(t, repo, "ada@x.com")
	r := NewResolver(repo, nil)

	got, res, err := r.Resolve(context.Background(), &Profile{
		Provider: user.ProviderGoogle, ExternalID: "g-1", Email: "ada@x.com", PictureURL: "https://pic", EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res != ResolutionLinked {
		t.Fatalf("expected linked, got %s", res)
	}
	if got.ID != local.ID || got.PasswordHash != local.PasswordHash || got.Role != user.RoleAdmin {
		t.Fatalf("linking must keep id, password hash and role: %+v", got)
	}
	if got.GoogleID != "g-1" || got.Provider != user.ProviderGoogle || got.PictureURL != "https://pic" || !got.EmailVerified {
		t.Fatalf("linking must record provider details: %+v", got)
	}
	if repo.Len() != 1 {
		t.Fatalf("linking must not create a user, have %d", repo.Len())
	}

	again, res, err := r.Resolve(context.Background(), &Profile{Provider: user.ProviderGoogle, ExternalID: "g-1", Email: "changed@x.com"})
	if err != nil || res != ResolutionExisting || again.ID != local.ID {
		t.Fatalf("second login must hit existing link: res=%s err=%v user=%+v", res, err, again)
	}
}

func TestResolveCreatesWithProviderDefaultRoles(t *testing.T) {
	repo := user.NewMemoryRepository()
	r := NewResolver(repo, nil)
	ctx := context.Background()

	g, res, err := r.Resolve(ctx, &Profile{Provider: user.ProviderGoogle, ExternalID: "g-1", Email: "g@x.com", FirstName: "Gee"})
	if err != nil || res != ResolutionCreated {
		t.Fatalf("google create: res=%s err=%v", res, err)
	}
	if g.Role != user.RoleBrand || g.Provider != user.ProviderGoogle || g.HasPassword() {
		t.Fatalf("unexpected google user %+v", g)
	}

	f, res, err := r.Resolve(ctx, &Profile{Provider: user.ProviderFacebook, ExternalID: "fb-1", Email: "f@x.com"})
	if err != nil || res != ResolutionCreated {
		t.Fatalf("facebook create: res=%s err=%v", res, err)
	}
	if f.Role != user.RoleUser || f.FacebookID != "fb-1" {
		t.Fatalf("unexpected facebook user %+v", f)
	}
}

func TestResolveRoleOverride(t *testing.T) {
	r := NewResolver(user.NewMemoryRepository(), map[user.Provider]user.Role{user.ProviderGoogle: user.RoleUser})
	u, _, err := r.Resolve(context.Background(), &Profile{Provider: user.ProviderGoogle, ExternalID: "g-1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if u.Role != user.RoleUser {
		t.Fatalf("expected override role USER, got %s", u.Role)
	}
}

func TestResolveFacebookWithoutEmailCreatesEmaillessUser(t *testing.T) {
	repo := user.NewMemoryRepository()
	r := NewResolver(repo, nil)

	for i, id := range []string{"fb-1", "fb-2"} {
		u, res, err := r.Resolve(context.Background(), &Profile{Provider: user.ProviderFacebook, ExternalID: id})
		if err != nil || res != ResolutionCreated {
			t.Fatalf("resolve %d: res=%s err=%v", i, res, err)
		}
		if u.Email != "" || u.EmailVerified {
			t.Fatalf("unexpected user %+v", u)
		}
	}
	if repo.Len() != 2 {
		t.Fatalf("expected two users, got %d", repo.Len())
	}
}

func TestResolveFacebookLinkKeepsPictureWhenAbsent(t *testing.T) {
	repo := user.NewMemoryRepository()
	local := seedLocal(t, repo, "p@x.com")
	local.PictureURL = "https://old"
	if err := repo.Update(context.Background(), local); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, res, err := NewResolver(repo, nil).Resolve(context.Background(), &Profile{
		Provider: user.ProviderFacebook, ExternalID: "fb-7", Email: "p@x.com", EmailVerified: true,
	})
	if err != nil || res != ResolutionLinked {
		t.Fatalf("resolve: res=%s err=%v", res, err)
	}
	if got.PictureURL != "https://old" || got.FacebookID != "fb-7" {
		t.Fatalf("unexpected linked user %+v", got)
	}
}

func TestResolveRejectsIncompleteProfiles(t *testing.T) {
	r := NewResolver(user.NewMemoryRepository(), nil)
	if _, _, err := r.Resolve(context.Background(), &Profile{Provider: user.ProviderGoogle}); err == nil {
		t.Fatal("expected error for missing external id")
	}
	if _, _, err := r.Resolve(context.Background(), &Profile{Provider: user.ProviderLocal, ExternalID: "x"}); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}
