// Package dbtest opens throwaway SQLite databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Funclose/Ef-HomeWork/internal/config"
	"github.com/Funclose/Ef-HomeWork/internal/database"
)

// Config returns database settings for an in-memory SQLite database private
// to the calling test.
func Config(t testing.TB) config.Database {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return config.Database{
		Connection: config.Connection{
			Driver: "sqlite",
			DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		},
	}
}

// Open returns connections to a fresh database with the schema created. The
// connections are closed when the test ends.
func Open(t testing.TB) *database.Connections {
	t.Helper()
	conns, err := database.Open(context.Background(), Config(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conns.Close()
	})
	require.NoError(t, database.EnsureCreated(context.Background(), conns.Writer))
	return conns
}
