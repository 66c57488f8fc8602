package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCleanObjectPath(t *testing.T) {
	tests := []struct {
		path string
		ok   bool
	}{
		{"groups/1/cover.png", true},
		{"items/42.jpg", true},
		{"", false},
		{"/etc/passwd", false},
		{"groups/../secret", false},
		{"groups//a.png", false},
		{"groups\\a.png", false},
	}
	for _, tt := range tests {
		_, err := CleanObjectPath(tt.path)
		if tt.ok {
			assert.NoError(t, err, tt.path)
		} else {
			assert.ErrorIs(t, err, ErrInvalidObjectPath, tt.path)
		}
	}
}

func TestLocalStore_PutReplaces(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root, "http://cdn.example/images/")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "groups/7/cover.png", "image/png", strings.NewReader("first")))
	require.NoError(t, store.Put(ctx, "groups/7/cover.png", "image/png", strings.NewReader("second")))

	data, err := os.ReadFile(filepath.Join(root, "groups", "7", "cover.png"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "groups", "7"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")

	assert.Equal(t, "http://cdn.example/images/groups/7/cover.png", store.PublicURL("groups/7/cover.png"))
}

func TestLocalStore_DeleteMissingIsNoop(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost/images")
	require.NoError(t, err)
	assert.NoError(t, store.Delete(context.Background(), "items/none.png"))
}

func TestInitDatabase_SQLite(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "rally.db")
	db, err := InitDatabase(dsn, 1, 1, zap.NewNop())
	require.NoError(t, err)

	for _, table := range []string{"profiles", "groups", "group_members", "bucket_list_items", "upvotes", "comments", "date_suggestions"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}
