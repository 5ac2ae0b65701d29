package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/identity/internal/common"
	"github.com/dmitrijs2005/identity/internal/dbx"
	"github.com/dmitrijs2005/identity/internal/logging"
	"github.com/dmitrijs2005/identity/internal/server/authz"
	"github.com/dmitrijs2005/identity/internal/server/claims"
	"github.com/dmitrijs2005/identity/internal/server/config"
	"github.com/dmitrijs2005/identity/internal/server/credentials"
	"github.com/dmitrijs2005/identity/internal/server/models"
	"github.com/dmitrijs2005/identity/internal/server/passwords"
	"github.com/dmitrijs2005/identity/internal/server/repositories/memory"
	"github.com/dmitrijs2005/identity/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/identity/internal/server/repositories/users"
	"github.com/dmitrijs2005/identity/internal/server/tokens"
)

const (
	testEmail    = "a@test.com"
	testPassword = "Xx1!aaaa"
)

var receiptRead = models.Claim{Type: claims.TypeReceipt, Value: claims.ValueRead}

type env struct {
	store *memory.Store
	svc   *IdentityService
}

func newEnv(t *testing.T, policy *authz.Policy) *env {
	t.Helper()
	store := memory.NewStore()
	repos := repomanager.NewMemoryRepositoryManager(store)
	log := logging.NewNopLogger()

	if policy == nil {
		var err error
		policy, err = authz.NewPolicy(authz.ModeAuthenticated, "", nil)
		require.NoError(t, err)
	}

	issuer := tokens.NewIssuer(tokens.Config{
		SecretKey:  []byte("secret"),
		Issuer:     "identity",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}, store, repos, log)

	hasher := passwords.NewBcrypt(4)
	pwPolicy := credentials.DefaultPolicy()
	pwPolicy.MaxBytes = passwords.MaxPasswordBytes(hasher)

	svc, err := NewIdentityService(store, repos,
		credentials.NewValidator(pwPolicy),
		hasher,
		claims.NewDefaultRegistry(nil, nil),
		issuer, policy, log)
	require.NoError(t, err)

	return &env{store: store, svc: svc}
}

func (e *env) signUp(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := e.svc.SignUp(context.Background(), email, testPassword, testPassword)
	require.NoError(t, err)
	return u
}

func TestSignUp_CreatesUserOnce(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	u := e.signUp(t, testEmail)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, testEmail, u.Email)
	assert.NotEqual(t, testPassword, u.PasswordHash)

	_, err := e.svc.SignUp(ctx, testEmail, testPassword, testPassword)
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)

	_, err = e.svc.SignUp(ctx, "  A@Test.COM ", testPassword, testPassword)
	assert.ErrorIs(t, err, common.ErrDuplicateEmail, "emails compare case-insensitively")
}

func TestSignUp_ValidationStoresNothing(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	tests := []struct {
		name            string
		email, pw, conf string
		want            error
	}{
		{"mismatch", testEmail, testPassword, "Xx1!aaab", common.ErrPasswordMismatch},
		{"weak", testEmail, "short", "short", common.ErrPasswordTooWeak},
		{"bad email", "not-an-email", testPassword, testPassword, common.ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.SignUp(ctx, tt.email, tt.pw, tt.conf)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}

	_, err := e.store.Users().FindByEmail(ctx, testEmail)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSignUp_ConcurrentSameEmail(t *testing.T) {
	e := newEnv(t, nil)

	var ok, dup atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.SignUp(context.Background(), testEmail, testPassword, testPassword)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, common.ErrDuplicateEmail):
				dup.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 7, dup.Load())
}

func TestSignIn(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	u := e.signUp(t, testEmail)

	pair, err := e.svc.SignIn(ctx, "A@TEST.com", testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	principal, err := e.svc.Authenticate(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, principal.UserID)
	assert.Equal(t, testEmail, principal.Email)
	assert.Empty(t, principal.Claims)

	_, err = e.svc.SignIn(ctx, testEmail, "Xx1!aaab")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = e.svc.SignIn(ctx, "nobody@test.com", testPassword)
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestSignIn_TokensCarryClaims(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	e.signUp(t, testEmail)
	require.NoError(t, e.svc.AddUserClaim(ctx, testEmail, []models.Claim{receiptRead}))

	pair, err := e.svc.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)

	principal, err := e.svc.Authenticate(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []models.Claim{receiptRead}, principal.Claims)
}

func TestClaims_SetSemantics(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	e.signUp(t, testEmail)

	list, err := e.svc.GetUserClaims(ctx, testEmail)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	require.NoError(t, e.svc.AddUserClaim(ctx, testEmail, []models.Claim{
		{Type: "receipt", Value: "read"},
		receiptRead,
	}))
	require.NoError(t, e.svc.AddUserClaim(ctx, testEmail, []models.Claim{
		receiptRead,
		{Type: claims.TypeCategory, Value: claims.ValueWrite},
	}))

	list, err = e.svc.GetUserClaims(ctx, "A@test.com")
	require.NoError(t, err)
	assert.Equal(t, []models.Claim{
		{Type: claims.TypeCategory, Value: claims.ValueWrite},
		receiptRead,
	}, list)
}

func TestAddUserClaim_Errors(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	e.signUp(t, testEmail)

	err := e.svc.AddUserClaim(ctx, "ghost@test.com", []models.Claim{receiptRead})
	assert.ErrorIs(t, err, common.ErrUserNotFound)

	err = e.svc.AddUserClaim(ctx, testEmail, []models.Claim{{Type: "Receipt", Value: "Fly"}})
	assert.ErrorIs(t, err, common.ErrUnknownClaim)
	assert.ErrorIs(t, err, common.ErrValidation)

	err = e.svc.AddUserClaim(ctx, testEmail, nil)
	assert.ErrorIs(t, err, common.ErrValidation)

	list, err := e.svc.GetUserClaims(ctx, testEmail)
	require.NoError(t, err)
	assert.Empty(t, list, "rejected requests must not add anything")

	_, err = e.svc.GetUserClaims(ctx, "ghost@test.com")
	assert.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestRefreshToken_RotationAndReplay(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	e.signUp(t, testEmail)

	first, err := e.svc.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)

	second, err := e.svc.RefreshToken(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = e.svc.RefreshToken(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidOrExpiredToken)
	assert.ErrorIs(t, err, common.ErrRefreshTokenReused)

	_, err = e.svc.RefreshToken(ctx, second.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidOrExpiredToken, "replay revokes the whole family")
}

func TestLogout(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	e.signUp(t, testEmail)

	pair, err := e.svc.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)

	require.NoError(t, e.svc.Logout(ctx, pair.RefreshToken))

	_, err = e.svc.RefreshToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrInvalidOrExpiredToken)
	assert.ErrorIs(t, e.svc.Logout(ctx, pair.RefreshToken), common.ErrInvalidOrExpiredToken)
}

func TestAuthenticate_Rejects(t *testing.T) {
	e := newEnv(t, nil)

	_, err := e.svc.Authenticate("")
	assert.ErrorIs(t, err, common.ErrInvalidOrExpiredToken)
	_, err = e.svc.Authenticate("abc.def.ghi")
	assert.ErrorIs(t, err, common.ErrInvalidOrExpiredToken)
}

func TestAuthorizeClaimChange_ClaimPolicy(t *testing.T) {
	policy, err := authz.NewPolicy(authz.ModeClaim, "Identity:Write", []string{"root@test.com"})
	require.NoError(t, err)
	e := newEnv(t, policy)
	ctx := context.Background()

	assert.ErrorIs(t, e.svc.AuthorizeClaimChange(ctx, nil), common.ErrorUnauthorized)
	assert.ErrorIs(t, e.svc.AuthorizeClaimChange(ctx, &authz.Principal{UserID: "u1", Email: testEmail}), common.ErrForbidden)
	assert.NoError(t, e.svc.AuthorizeClaimChange(ctx, &authz.Principal{UserID: "u2", Email: "ROOT@test.com"}))
	assert.NoError(t, e.svc.AuthorizeClaimChange(ctx, &authz.Principal{
		UserID: "u3",
		Claims: []models.Claim{{Type: claims.TypeIdentity, Value: claims.ValueWrite}},
	}))
}

// Sign up, sign in, grant a claim and read it back, as a client would.
func TestScenario_SignUpGrantRead(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	_, err := e.svc.SignUp(ctx, testEmail, testPassword, testPassword)
	require.NoError(t, err)

	pair, err := e.svc.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)

	principal, err := e.svc.Authenticate(pair.AccessToken)
	require.NoError(t, err)
	require.NoError(t, e.svc.AuthorizeClaimChange(ctx, principal))
	require.NoError(t, e.svc.AddUserClaim(ctx, testEmail, []models.Claim{receiptRead}))

	list, err := e.svc.GetUserClaims(ctx, testEmail)
	require.NoError(t, err)
	assert.Equal(t, []models.Claim{receiptRead}, list)
}

type failingUsers struct {
	users.Repository
	err error
}

func (f failingUsers) FindByEmail(context.Context, string) (*models.User, error) {
	return nil, f.err
}

type failingRepos struct {
	repomanager.RepositoryManager
	users failingUsers
}

func (f failingRepos) Users(dbx.DBTX) users.Repository { return f.users }

func TestStorageFailuresPropagate(t *testing.T) {
	store := memory.NewStore()
	storageErr := errors.Join(common.ErrStorageUnavailable, context.DeadlineExceeded)
	repos := failingRepos{
		RepositoryManager: repomanager.NewMemoryRepositoryManager(store),
		users:             failingUsers{Repository: store.Users(), err: storageErr},
	}

	cfg := &config.Config{}
	cfg.LoadDefaults()
	svc, _, err := Build(cfg, store, repos, logging.NewNopLogger())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.SignIn(ctx, testEmail, testPassword)
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, common.ErrInvalidCredentials)

	err = svc.AddUserClaim(ctx, testEmail, []models.Claim{receiptRead})
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)

	_, err = svc.GetUserClaims(ctx, testEmail)
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
}

func TestBuild_RejectsBadConfig(t *testing.T) {
	store := memory.NewStore()
	repos := repomanager.NewMemoryRepositoryManager(store)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.PasswordHasher = "md5"
	_, _, err := Build(cfg, store, repos, logging.NewNopLogger())
	assert.Error(t, err)

	cfg.LoadDefaults()
	cfg.ClaimPolicy = authz.ModeClaim
	cfg.RequiredClaim = "nocolon"
	_, _, err = Build(cfg, store, repos, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestSignUp_PasswordLengthFollowsHasher(t *testing.T) {
	ctx := context.Background()
	long := "Xx1!" + strings.Repeat("a", 76) // 80 bytes
	limit := "Xx1!" + strings.Repeat("a", 68) // 72 bytes

	t.Run("bcrypt rejects over 72 bytes as weak", func(t *testing.T) {
		store := memory.NewStore()
		cfg := &config.Config{}
		cfg.LoadDefaults()
		svc, _, err := Build(cfg, store, repomanager.NewMemoryRepositoryManager(store), logging.NewNopLogger())
		require.NoError(t, err)

		_, err = svc.SignUp(ctx, "long@test.com", long, long)
		require.ErrorIs(t, err, common.ErrPasswordTooWeak)
		assert.ErrorIs(t, err, common.ErrValidation)
		assert.NotErrorIs(t, err, common.ErrorInternal)
		assert.Contains(t, err.Error(), "at most 72 bytes")

		_, err = store.Users().FindByEmail(ctx, "long@test.com")
		assert.ErrorIs(t, err, common.ErrorNotFound)

		_, err = svc.SignUp(ctx, "limit@test.com", limit, limit)
		require.NoError(t, err)
		_, err = svc.SignIn(ctx, "limit@test.com", limit)
		assert.NoError(t, err)
	})

	t.Run("argon2id has no cap", func(t *testing.T) {
		store := memory.NewStore()
		cfg := &config.Config{}
		cfg.LoadDefaults()
		cfg.PasswordHasher = passwords.AlgorithmArgon2id
		svc, _, err := Build(cfg, store, repomanager.NewMemoryRepositoryManager(store), logging.NewNopLogger())
		require.NoError(t, err)

		_, err = svc.SignUp(ctx, "long@test.com", long, long)
		require.NoError(t, err)
		_, err = svc.SignIn(ctx, "long@test.com", long)
		assert.NoError(t, err)
	})
}
