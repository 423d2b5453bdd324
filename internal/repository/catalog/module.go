package catalog

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/kitchen/internal/port"
)

// Module provides the catalog repository to Fx.
var Module = fx.Provide(
	NewRepository,
	func(r *Repository) port.Catalog { return r },
)
