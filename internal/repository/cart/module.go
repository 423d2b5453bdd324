package cart

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/kitchen/internal/port"
)

// Module provides the cart repository to Fx.
var Module = fx.Provide(
	NewRepository,
	func(r *Repository) port.CartStore { return r },
)
