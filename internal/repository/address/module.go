package address

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/kitchen/internal/port"
)

// Module provides the address book repository to Fx.
var Module = fx.Provide(
	NewRepository,
	func(r *Repository) port.AddressBook { return r },
)
