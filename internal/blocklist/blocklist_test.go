package blocklist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kindling/internal/models"
	"kindling/internal/store/gormstore"
)

func setupManager(t *testing.T) (*Manager, *gormstore.Store) {
	t.Helper()
	st, err := gormstore.OpenSQLite(":memory:")
	require.NoError(t, err)

	ctx := context.Background()
	for _, id := range []string{"uid1", "uid2", "uid3"} {
		u := &models.User{ID: id, FirstName: "User " + id}
		require.NoError(t, st.Set(ctx, models.UsersCollection, id, u.Fields(), false))
	}
	return NewManager(st), st
}

func TestManager_BlockAndUnblock(t *testing.T) {
	ctx := context.Background()
	mgr, _ := setupManager(t)

	require.NoError(t, mgr.Block(ctx, "uid1", "uid2"))

	blocked, err := mgr.IsBlocked(ctx, "uid1", "uid2")
	require.NoError(t, err)
	assert.True(t, blocked)

	reverse, err := mgr.IsBlocked(ctx, "uid2", "uid1")
	require.NoError(t, err)
	assert.False(t, reverse, "blocks are directional")

	require.NoError(t, mgr.Unblock(ctx, "uid1", "uid2"))
	blocked, err = mgr.IsBlocked(ctx, "uid1", "uid2")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestManager_BlockIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mgr, _ := setupManager(t)

	require.NoError(t, mgr.Block(ctx, "uid1", "uid2"))
	require.NoError(t, mgr.Block(ctx, "uid1", "uid2"))
	require.NoError(t, mgr.Block(ctx, "uid1", "uid3"))

	list, err := mgr.Blocked(ctx, "uid1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"uid2", "uid3"}, list)
}

func TestManager_UnblockNeverBlocked(t *testing.T) {
	ctx := context.Background()
	mgr, _ := setupManager(t)

	require.NoError(t, mgr.Unblock(ctx, "uid1", "uid2"))

	list, err := mgr.Blocked(ctx, "uid1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestManager_ValidatesPair(t *testing.T) {
	ctx := context.Background()
	mgr, _ := setupManager(t)

	err := mgr.Block(ctx, "uid1", "uid1")
	assert.True(t, models.IsCode(err, models.CodeInvalidOperation))

	err = mgr.Block(ctx, "", "uid2")
	assert.True(t, models.IsCode(err, models.CodeInvalidOperation))

	err = mgr.Unblock(ctx, "uid1", "")
	assert.True(t, models.IsCode(err, models.CodeInvalidOperation))
}

func TestManager_UnknownUser(t *testing.T) {
	ctx := context.Background()
	mgr, _ := setupManager(t)

	err := mgr.Block(ctx, "ghost", "uid1")
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	_, err = mgr.IsBlocked(ctx, "ghost", "uid1")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
