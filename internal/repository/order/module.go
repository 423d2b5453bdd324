package order

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/kitchen/internal/port"
)

// Module provides the order repository to Fx, both concretely and as its ports.
var Module = fx.Provide(
	NewRepository,
	func(r *Repository) port.OrderLedger { return r },
	func(r *Repository) port.OrderReporter { return r },
)
