package policystore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "policy.db")
	store, err := New(&Config{Type: DatabaseTypeSQLite, SQLite: SQLiteConfig{Path: dbPath}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndGetPolicySet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	set, err := store.CreatePolicySet(ctx, "default")
	require.NoError(t, err)
	assert.NotEmpty(t, set.ID)

	fetched, err := store.GetPolicySet(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, set.ID, fetched.ID)
}

func TestCreatePolicySetDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.CreatePolicySet(ctx, "dup")
	require.NoError(t, err)

	_, err = store.CreatePolicySet(ctx, "dup")
	assert.ErrorIs(t, err, ErrDuplicatePolicySet)
}

func TestGetPolicySetNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetPolicySet(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPolicySetNotFound)
}

func TestAddRuleAndListOrdersByInsertion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	set, err := store.CreatePolicySet(ctx, "rules")
	require.NoError(t, err)

	require.NoError(t, store.AddRule(ctx, set.ID, "/srv/shared", false))
	require.NoError(t, store.AddRule(ctx, set.ID, "/srv/scratch", true))

	rows, err := store.ListRules(ctx, set.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "/srv/shared", rows[0].Prefix)
	assert.False(t, rows[0].AllowWrite)
	assert.Equal(t, "/srv/scratch", rows[1].Prefix)
	assert.True(t, rows[1].AllowWrite)
}

func TestGORMPolicySourceRulesSatisfiesSandboxInterface(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	source, err := NewGORMPolicySource(ctx, store, "session-1")
	require.NoError(t, err)

	require.NoError(t, store.AddRule(ctx, source.policySetID, "/srv/shared", false))

	rules := source.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "/srv/shared", rules[0].Prefix)
	assert.False(t, rules[0].AllowWrite)
}

func TestRemoveRuleNotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.RemoveRule(context.Background(), 99999)
	assert.Error(t, err)
}

func TestCachedRulesServesFromCacheUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	set, err := store.CreatePolicySet(ctx, "cached")
	require.NoError(t, err)

	require.NoError(t, store.AddRule(ctx, set.ID, "/srv/shared", false))
	first, err := store.CachedRules(ctx, set.ID)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Writing directly, bypassing AddRule, must not appear until the
	// cache is invalidated: CachedRules is still serving the cached copy.
	require.NoError(t, store.db.WithContext(ctx).Create(&PathRuleModel{PolicySetID: set.ID, Prefix: "/srv/extra"}).Error)
	stale, err := store.CachedRules(ctx, set.ID)
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	store.invalidateCache()
	fresh, err := store.CachedRules(ctx, set.ID)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

func TestStoreWatchesSQLiteFileForExternalChanges(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	set, err := store.CreatePolicySet(ctx, "watched")
	require.NoError(t, err)

	require.NoError(t, store.AddRule(ctx, set.ID, "/srv/shared", false))
	_, err = store.CachedRules(ctx, set.ID)
	require.NoError(t, err)

	require.NoError(t, store.db.WithContext(ctx).Create(&PathRuleModel{PolicySetID: set.ID, Prefix: "/srv/extra"}).Error)

	// The raw insert above is itself a write to the backing file (or its
	// WAL sibling); wait for the watcher goroutine to observe it and drop
	// the cache.
	require.Eventually(t, func() bool {
		rules, err := store.CachedRules(ctx, set.ID)
		return err == nil && len(rules) == 2
	}, 2*time.Second, 10*time.Millisecond)
}
