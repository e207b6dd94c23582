package flows

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goFedAuth/cache"
	"github.com/MrEthical07/goFedAuth/internal/keylock"
	"github.com/MrEthical07/goFedAuth/jwt"
	"github.com/MrEthical07/goFedAuth/refresh"
	"github.com/MrEthical07/goFedAuth/user"
)

type memStore struct {
	mu     sync.Mutex
	byUser map[int64]refresh.Record
}

func newMemStore() *memStore { return &memStore{byUser: map[int64]refresh.Record{}} }

func (m *memStore) Replace(_ context.Context, rec refresh.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUser[rec.UserID] = rec
	return nil
}

func (m *memStore) Lookup(_ context.Context, token string) (*refresh.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.byUser {
		if rec.Token == token {
			r := rec
			return &r, nil
		}
	}
	return nil, refresh.ErrNotFound
}

func (m *memStore) DeleteForUser(_ context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byUser[userID]; !ok {
		return 0, nil
	}
	delete(m.byUser, userID)
	return 1, nil
}

func (m *memStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, rec := range m.byUser {
		if rec.ExpiredAt(now) {
			delete(m.byUser, id)
			n++
		}
	}
	return n, nil
}

type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "h:" + pw, nil }
func (plainHasher) Verify(pw, hash string) (bool, error) {
	if !strings.HasPrefix(hash, "h:") {
		return false, errors.New("bad hash")
	}
	return hash == "h:"+pw, nil
}

type fixture struct {
	tokens *jwt.Manager
	users  *user.MemoryRepository
	store  *memStore
	cache  *cache.AccessTokens
	deps   Deps
}

func newFixture(t *testing.T, gate bool) *fixture {
	t.Helper()
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
	})
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}
	f := &fixture{
		tokens: tokens,
		users:  user.NewMemoryRepository(),
		store:  newMemStore(),
		cache:  cache.NewAccessTokens(cache.Config{}),
	}
	sess := SessionDeps{Tokens: tokens, Store: f.store, Cache: f.cache}
	f.deps = Deps{
		Register:     RegisterDeps{Users: f.users, Hasher: plainHasher{}, MinPasswordBytes: 8, Session: sess},
		Authenticate: AuthenticateDeps{Users: f.users, Hasher: plainHasher{}, Session: sess},
		Refresh:      RefreshDeps{Tokens: tokens, Users: f.users, Store: f.store, Cache: f.cache},
		Logout:       LogoutDeps{Store: f.store, Cache: f.cache},
		Validate:     ValidateDeps{Tokens: tokens, Users: f.users, Cache: f.cache, GateWithCache: gate},
		Purge:        PurgeDeps{Store: f.store},
	}
	return f
}

func (f *fixture) register(t *testing.T, email string) RegisterResult {
	t.Helper()
	res := RunRegister(context.Background(), RegisterRequest{FirstName: "A", LastName: "B", Email: email, Password: "password1"}, f.deps.Register)
	if res.Failure != RegisterFailureNone {
		t.Fatalf("register %s: kind=%d err=%v", email, res.Failure, res.Err)
	}
	return res
}

func TestRegisterInstallsSession(t *testing.T) {
	f := newFixture(t, false)
	res := f.register(t, "a@x.com")

	if res.User.Role != user.RoleUser || res.User.Provider != user.ProviderLocal {
		t.Fatalf("unexpected user %+v", res.User)
	}
	if cached, ok := f.cache.Get("a@x.com"); !ok || cached != res.Session.AccessToken {
		t.Fatal("access token must be cached under the email")
	}
	rec, err := f.store.Lookup(context.Background(), res.Session.RefreshToken)
	if err != nil || rec.UserID != res.User.ID {
		t.Fatalf("refresh token must be stored for user: rec=%+v err=%v", rec, err)
	}
	if !rec.ExpiresAt.Equal(res.Session.RefreshExpiresAt) {
		t.Fatalf("stored expiry %v must equal token expiry %v", rec.ExpiresAt, res.Session.RefreshExpiresAt)
	}
}

func TestRegisterRejections(t *testing.T) {
	f := newFixture(t, false)
	f.register(t, "dup@x.com")

	res := RunRegister(context.Background(), RegisterRequest{Email: "dup@x.com", Password: "password1"}, f.deps.Register)
	if res.Failure != RegisterFailureDuplicate {
		t.Fatalf("expected duplicate, got %d", res.Failure)
	}
	res = RunRegister(context.Background(), RegisterRequest{Email: "new@x.com", Password: "short"}, f.deps.Register)
	if res.Failure != RegisterFailurePasswordPolicy {
		t.Fatalf("expected password policy, got %d", res.Failure)
	}
	res = RunRegister(context.Background(), RegisterRequest{Email: "  ", Password: "password1"}, f.deps.Register)
	if res.Failure != RegisterFailureInvalid {
		t.Fatalf("expected invalid, got %d", res.Failure)
	}
}

func TestAuthenticateOutcomes(t *testing.T) {
	f := newFixture(t, false)
	f.register(t, "a@x.com")
	if err := f.users.Create(context.Background(), &user.User{Email: "fed@x.com", Role: user.RoleBrand, Provider: user.ProviderGoogle, GoogleID: "g"}); err != nil {
		t.Fatalf("create federated user: %v", err)
	}

	cases := []struct {
		email, password string
		want            AuthenticateFailureKind
	}{
		{"a@x.com", "password1", AuthenticateFailureNone},
		{"a@x.com", "wrong-pass", AuthenticateFailureMismatch},
		{"nobody@x.com", "password1", AuthenticateFailureUnknownUser},
		{"fed@x.com", "password1", AuthenticateFailureNoPassword},
	}
	for _, tc := range cases {
		res := RunAuthenticate(context.Background(), tc.email, tc.password, f.deps.Authenticate)
		if res.Failure != tc.want {
			t.Fatalf("%s/%s: expected %d, got %d (%v)", tc.email, tc.password, tc.want, res.Failure, res.Err)
		}
	}
}

func TestLoginSupersedesPreviousRefreshToken(t *testing.T) {
	f := newFixture(t, false)
	first := f.register(t, "a@x.com")
	second := RunAuthenticate(context.Background(), "a@x.com", "password1", f.deps.Authenticate)
	if second.Failure != AuthenticateFailureNone {
		t.Fatalf("authenticate: %v", second.Err)
	}

	res := RunRefresh(context.Background(), first.Session.RefreshToken, f.deps.Refresh)
	if res.Failure != RefreshFailureNotStored {
		t.Fatalf("superseded refresh token must be rejected, got %d", res.Failure)
	}
}

func TestRefreshKeepsRefreshTokenAndRecachesAccess(t *testing.T) {
	f := newFixture(t, false)
	reg := f.register(t, "a@x.com")

	res := RunRefresh(context.Background(), reg.Session.RefreshToken, f.deps.Refresh)
	if res.Failure != RefreshFailureNone {
		t.Fatalf("refresh: kind=%d err=%v", res.Failure, res.Err)
	}
	if res.RefreshToken != reg.Session.RefreshToken {
		t.Fatal("refresh token must be returned unchanged")
	}
	if res.AccessToken == reg.Session.AccessToken {
		t.Fatal("refresh must mint a new access token")
	}
	if cached, _ := f.cache.Get("a@x.com"); cached != res.AccessToken {
		t.Fatal("new access token must replace the cached one")
	}

	again := RunRefresh(context.Background(), reg.Session.RefreshToken, f.deps.Refresh)
	if again.Failure != RefreshFailureNone {
		t.Fatalf("refresh token must stay usable, got %d", again.Failure)
	}
}

func TestRefreshRejections(t *testing.T) {
	f := newFixture(t, false)
	reg := f.register(t, "a@x.com")
	other := f.register(t, "b@x.com")
	ctx := context.Background()

	if res := RunRefresh(ctx, "garbage", f.deps.Refresh); res.Failure != RefreshFailureDecode {
		t.Fatalf("garbage: expected decode, got %d", res.Failure)
	}
	if res := RunRefresh(ctx, reg.Session.AccessToken, f.deps.Refresh); res.Failure != RefreshFailureDecode {
		t.Fatalf("access token: expected decode, got %d", res.Failure)
	}

	_, _ = f.store.DeleteForUser(ctx, reg.User.ID)
	_ = f.store.Replace(ctx, refresh.Record{Token: reg.Session.RefreshToken, UserID: other.User.ID, Email: "b@x.com", ExpiresAt: reg.Session.RefreshExpiresAt})
	if res := RunRefresh(ctx, reg.Session.RefreshToken, f.deps.Refresh); res.Failure != RefreshFailureOwnerMismatch {
		t.Fatalf("foreign record: expected owner mismatch, got %d", res.Failure)
	}

	_, _ = f.store.DeleteForUser(ctx, other.User.ID)
	_ = f.store.Replace(ctx, refresh.Record{Token: reg.Session.RefreshToken, UserID: reg.User.ID, Email: "a@x.com", ExpiresAt: time.Now().Add(-time.Minute)})
	if res := RunRefresh(ctx, reg.Session.RefreshToken, f.deps.Refresh); res.Failure != RefreshFailureExpired {
		t.Fatalf("expired record: expected expired, got %d", res.Failure)
	}
}

func TestLogoutRevokesAndInvalidatesCache(t *testing.T) {
	f := newFixture(t, false)
	reg := f.register(t, "a@x.com")
	ctx := context.Background()

	res := RunLogout(ctx, reg.Session.RefreshToken, f.deps.Logout)
	if res.Failure != LogoutFailureNone || res.Deleted != 1 {
		t.Fatalf("logout: %+v", res)
	}
	if _, ok := f.cache.Get("a@x.com"); ok {
		t.Fatal("logout must invalidate the cached access token")
	}
	if r := RunRefresh(ctx, reg.Session.RefreshToken, f.deps.Refresh); r.Failure != RefreshFailureNotStored {
		t.Fatalf("refresh after logout: expected not stored, got %d", r.Failure)
	}
	if r := RunLogout(ctx, reg.Session.RefreshToken, f.deps.Logout); r.Failure != LogoutFailureNotStored {
		t.Fatalf("second logout: expected not stored, got %d", r.Failure)
	}
}

func TestValidateWithoutCacheGate(t *testing.T) {
	f := newFixture(t, false)
	reg := f.register(t, "a@x.com")
	RunLogout(context.Background(), reg.Session.RefreshToken, f.deps.Logout)

	res := RunValidate(context.Background(), reg.Session.AccessToken, f.deps.Validate)
	if res.Failure != ValidateFailureNone || res.User.ID != reg.User.ID {
		t.Fatalf("ungated validation must accept live token: kind=%d err=%v", res.Failure, res.Err)
	}
}

func TestValidateWithCacheGate(t *testing.T) {
	f := newFixture(t, true)
	reg := f.register(t, "a@x.com")
	ctx := context.Background()

	if res := RunValidate(ctx, reg.Session.AccessToken, f.deps.Validate); res.Failure != ValidateFailureNone {
		t.Fatalf("gated validation must accept cached token: %d", res.Failure)
	}
	RunLogout(ctx, reg.Session.RefreshToken, f.deps.Logout)
	if res := RunValidate(ctx, reg.Session.AccessToken, f.deps.Validate); res.Failure != ValidateFailureRevoked {
		t.Fatalf("gated validation after logout: expected revoked, got %d", res.Failure)
	}
}

func TestValidateRejectsRefreshAndGarbage(t *testing.T) {
	f := newFixture(t, false)
	reg := f.register(t, "a@x.com")
	ctx := context.Background()

	if res := RunValidate(ctx, reg.Session.RefreshToken, f.deps.Validate); res.Failure != ValidateFailureWrongType {
		t.Fatalf("refresh token as access: expected wrong type, got %d", res.Failure)
	}
	res := RunValidate(ctx, "a.b.c", f.deps.Validate)
	if res.Failure != ValidateFailureToken || !errors.Is(res.Err, jwt.ErrMalformed) {
		t.Fatalf("garbage: expected malformed, got %d %v", res.Failure, res.Err)
	}
}

func TestEmaillessUserUsesIDCacheKey(t *testing.T) {
	f := newFixture(t, true)
	u := &user.User{FacebookID: "fb-1", Role: user.RoleUser, Provider: user.ProviderFacebook}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create: %v", err)
	}
	sess, err := RunIssueSession(context.Background(), u, f.deps.Register.Session)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if cached, _ := f.cache.Get(CacheKey("", u.ID)); cached != sess.AccessToken {
		t.Fatal("emailless user must be cached by id key")
	}
	if res := RunValidate(context.Background(), sess.AccessToken, f.deps.Validate); res.Failure != ValidateFailureNone {
		t.Fatalf("emailless validation: kind=%d err=%v", res.Failure, res.Err)
	}
	if res := RunRefresh(context.Background(), sess.RefreshToken, f.deps.Refresh); res.Failure != RefreshFailureNone {
		t.Fatalf("emailless refresh: kind=%d err=%v", res.Failure, res.Err)
	}
}

func TestPurgeUsesClock(t *testing.T) {
	f := newFixture(t, false)
	reg := f.register(t, "a@x.com")
	deps := f.deps.Purge
	deps.Now = func() time.Time { return reg.Session.RefreshExpiresAt.Add(time.Second) }

	n, err := RunPurge(context.Background(), deps)
	if err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
}

// interleavedStore runs hook once, inside the first Lookup, after the record
// has been read.
type interleavedStore struct {
	*memStore
	once sync.Once
	hook func()
}

func (s *interleavedStore) Lookup(ctx context.Context, token string) (*refresh.Record, error) {
	rec, err := s.memStore.Lookup(ctx, token)
	s.once.Do(s.hook)
	return rec, err
}

// lockedDeps wires one striped lock into every flow that touches the cache.
func lockedDeps(f *fixture, store refresh.Store) Deps {
	locks := keylock.New(8)
	deps := f.deps
	deps.Register.Session.Lock = locks.Lock
	deps.Authenticate.Session.Lock = locks.Lock
	deps.Refresh.Store = store
	deps.Refresh.Lock = locks.Lock
	deps.Logout.Lock = locks.Lock
	return deps
}

func TestRefreshRacingLogoutDoesNotRecache(t *testing.T) {
	f := newFixture(t, true)
	reg := f.register(t, "a@x.com")
	ctx := context.Background()

	store := &interleavedStore{memStore: f.store}
	deps := lockedDeps(f, store)
	store.hook = func() {
		if res := RunLogout(ctx, reg.Session.RefreshToken, deps.Logout); res.Failure != LogoutFailureNone {
			t.Errorf("logout: kind=%d err=%v", res.Failure, res.Err)
		}
	}

	res := RunRefresh(ctx, reg.Session.RefreshToken, deps.Refresh)
	if res.Failure != RefreshFailureNotStored {
		t.Fatalf("refresh overlapping logout: expected not stored, got %d", res.Failure)
	}
	if _, ok := f.cache.Get("a@x.com"); ok {
		t.Fatal("no access token may be cached after logout")
	}
	if res.AccessToken != "" {
		t.Fatal("failed refresh must not return an access token")
	}
	if v := RunValidate(ctx, reg.Session.AccessToken, deps.Validate); v.Failure != ValidateFailureRevoked {
		t.Fatalf("gated validation after logout: expected revoked, got %d", v.Failure)
	}
}

func TestRefreshRacingLoginKeepsNewSessionCached(t *testing.T) {
	f := newFixture(t, true)
	reg := f.register(t, "a@x.com")
	ctx := context.Background()

	store := &interleavedStore{memStore: f.store}
	deps := lockedDeps(f, store)
	var login AuthenticateResult
	store.hook = func() {
		login = RunAuthenticate(ctx, "a@x.com", "password1", deps.Authenticate)
	}

	res := RunRefresh(ctx, reg.Session.RefreshToken, deps.Refresh)
	if login.Failure != AuthenticateFailureNone {
		t.Fatalf("authenticate: kind=%d err=%v", login.Failure, login.Err)
	}
	if res.Failure != RefreshFailureNotStored {
		t.Fatalf("refresh of superseded token: expected not stored, got %d", res.Failure)
	}
	if cached, _ := f.cache.Get("a@x.com"); cached != login.Session.AccessToken {
		t.Fatal("the new session's access token must stay cached")
	}
	if v := RunValidate(ctx, login.Session.AccessToken, deps.Validate); v.Failure != ValidateFailureNone {
		t.Fatalf("new session must validate, got %d", v.Failure)
	}
}

type failingReplaceStore struct {
	*memStore
	fail bool
}

func (s *failingReplaceStore) Replace(ctx context.Context, rec refresh.Record) error {
	if s.fail {
		return errors.New("store unavailable")
	}
	return s.memStore.Replace(ctx, rec)
}

func TestRegisterIssueFailureRecoversThroughAuthenticate(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	store := &failingReplaceStore{memStore: f.store, fail: true}
	deps := f.deps
	deps.Register.Session.Store = store
	deps.Authenticate.Session.Store = store

	req := RegisterRequest{Email: "a@x.com", Password: "password1"}
	res := RunRegister(ctx, req, deps.Register)
	if res.Failure != RegisterFailureIssue || res.User == nil {
		t.Fatalf("expected issue failure with created user, got kind=%d", res.Failure)
	}
	if _, err := f.users.FindByEmail(ctx, "a@x.com"); err != nil {
		t.Fatalf("account must be kept: %v", err)
	}
	if _, ok := f.cache.Get("a@x.com"); ok {
		t.Fatal("no access token may be cached without a stored session")
	}

	store.fail = false
	if again := RunRegister(ctx, req, deps.Register); again.Failure != RegisterFailureDuplicate {
		t.Fatalf("second register: expected duplicate, got %d", again.Failure)
	}
	login := RunAuthenticate(ctx, "a@x.com", "password1", deps.Authenticate)
	if login.Failure != AuthenticateFailureNone {
		t.Fatalf("authenticate after failed issue: kind=%d err=%v", login.Failure, login.Err)
	}
	if rec, err := f.store.Lookup(ctx, login.Session.RefreshToken); err != nil || rec.UserID != res.User.ID {
		t.Fatalf("session must be stored: rec=%+v err=%v", rec, err)
	}
}
