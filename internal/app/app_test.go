package app

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/Funclose/Ef-HomeWork/internal/config"
)

// The graphs are validated without invoking constructors.
func TestGraphsResolve(t *testing.T) {
	src := config.Source{Path: "appsettings.json"}
	for name, opts := range map[string]fx.Option{"core": Core, "http": HTTP, "worker": Worker} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, fx.ValidateApp(fx.Supply(src), opts, fx.NopLogger))
		})
	}
}
