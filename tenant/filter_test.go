package tenant

import (
	"testing"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequire(t *testing.T) {
	assert.NoError(t, Require("org-a"))
	assert.ErrorIs(t, Require(""), core.ErrMissingTenant)
	assert.ErrorIs(t, Require("  \t"), core.ErrMissingTenant)
}

func TestFilter(t *testing.T) {
	base := storage.Query{Partition: storage.Partition{Kind: core.ContentChunk, Generation: "v1", Dimension: 8}, Limit: 5}

	t.Run("scopes query", func(t *testing.T) {
		q, err := Filter("org-a", base)
		require.NoError(t, err)
		assert.Equal(t, core.TenantID("org-a"), q.Tenant)
		assert.Equal(t, 5, q.Limit)
		assert.NoError(t, q.Validate())
	})

	t.Run("missing tenant", func(t *testing.T) {
		_, err := Filter("", base)
		assert.ErrorIs(t, err, core.ErrMissingTenant)
	})

	t.Run("same tenant is idempotent", func(t *testing.T) {
		scoped, err := Filter("org-a", base)
		require.NoError(t, err)
		again, err := Filter("org-a", scoped)
		require.NoError(t, err)
		assert.Equal(t, scoped, again)
	})

	t.Run("refuses rescoping", func(t *testing.T) {
		scoped, err := Filter("org-a", base)
		require.NoError(t, err)
		_, err = Filter("org-b", scoped)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})
}

func TestOwns(t *testing.T) {
	assert.True(t, Owns("org-a", "org-a"))
	assert.False(t, Owns("org-a", "org-b"))
	assert.False(t, Owns("", ""))
}
