package store

import (
	"testing"

	"github.com/feedbackd/feedbackd/internal/config"
	"github.com/stretchr/testify/require"
)

func TestBuildLibsqlDSN(t *testing.T) {
	t.Run("URLUsesRawValue", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://feedback.turso.io",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://feedback.turso.io?authToken=token123", dsn)
	})

	t.Run("URLKeepsExistingToken", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://feedback.turso.io?authToken=abc",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://feedback.turso.io?authToken=abc", dsn)
	})

	t.Run("PathWithFilePrefix", func(t *testing.T) {
		dsn, err := buildLibsqlDSN(config.StoreConfig{Path: "file:./feedbackd.db"})
		require.NoError(t, err)
		require.Equal(t, "file:./feedbackd.db", dsn)
	})

	t.Run("BarePathCreatesDirectory", func(t *testing.T) {
		dir := t.TempDir()
		dsn, err := buildLibsqlDSN(config.StoreConfig{Path: dir + "/data/feedbackd.db"})
		require.NoError(t, err)
		require.Equal(t, "file:"+dir+"/data/feedbackd.db", dsn)
		require.DirExists(t, dir+"/data")
	})

	t.Run("PathMissing", func(t *testing.T) {
		_, err := buildLibsqlDSN(config.StoreConfig{})
		require.Error(t, err)
	})

	t.Run("MemoryPath", func(t *testing.T) {
		dsn, err := buildLibsqlDSN(config.StoreConfig{Path: ":memory:"})
		require.NoError(t, err)
		require.Equal(t, ":memory:", dsn)
	})
}

func TestWindowQueryValidate(t *testing.T) {
	require.Error(t, WindowQuery{}.Validate())
	require.NoError(t, WindowQuery{All: true}.Validate())
	require.NoError(t, WindowQuery{UserID: "u"}.Validate())
	require.NoError(t, WindowQuery{Prefix: "team-"}.Validate())

	where, args, err := WindowQuery{Prefix: "team-"}.whereClause()
	require.NoError(t, err)
	require.Equal(t, "WHERE user_id LIKE ?", where)
	require.Equal(t, []any{"team-%"}, args)
}

func TestWindowQueryMatches(t *testing.T) {
	require.True(t, WindowQuery{All: true}.Matches("anyone"))
	require.True(t, WindowQuery{UserID: "u-1"}.Matches("u-1"))
	require.False(t, WindowQuery{UserID: "u-1"}.Matches("u-10"))
	require.True(t, WindowQuery{Prefix: "team-"}.Matches("team-a"))
	require.False(t, WindowQuery{Prefix: "team-"}.Matches("solo"))
	require.False(t, WindowQuery{}.Matches("u-1"))
}
