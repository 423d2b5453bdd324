// Package http groups the REST handlers of every domain area.
package http

import (
	"go.uber.org/fx"

	carttransport "github.com/Additional-Code/kitchen/internal/transport/http/cart"
	catalogtransport "github.com/Additional-Code/kitchen/internal/transport/http/catalog"
	ordertransport "github.com/Additional-Code/kitchen/internal/transport/http/order"
	reporttransport "github.com/Additional-Code/kitchen/internal/transport/http/report"
)

// Module mounts the customer and staff routes on the shared echo instance.
var Module = fx.Module("http_transport",
	carttransport.Module,
	catalogtransport.Module,
	ordertransport.Module,
	reporttransport.Module,
)
