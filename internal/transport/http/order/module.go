package order

import (
	"go.uber.org/fx"
)

// Module wires HTTP order handlers onto the shared Echo router.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
