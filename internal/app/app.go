package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/kitchen/internal/cache"
	"github.com/Additional-Code/kitchen/internal/config"
	"github.com/Additional-Code/kitchen/internal/database"
	"github.com/Additional-Code/kitchen/internal/geo"
	"github.com/Additional-Code/kitchen/internal/logger"
	"github.com/Additional-Code/kitchen/internal/messaging"
	"github.com/Additional-Code/kitchen/internal/observability"
	"github.com/Additional-Code/kitchen/internal/payment"
	repositoryaddress "github.com/Additional-Code/kitchen/internal/repository/address"
	repositorycart "github.com/Additional-Code/kitchen/internal/repository/cart"
	repositorycatalog "github.com/Additional-Code/kitchen/internal/repository/catalog"
	repositoryorder "github.com/Additional-Code/kitchen/internal/repository/order"
	"github.com/Additional-Code/kitchen/internal/repository/transactor"
	"github.com/Additional-Code/kitchen/internal/scheduler"
	grpcserver "github.com/Additional-Code/kitchen/internal/server/grpc"
	httpserver "github.com/Additional-Code/kitchen/internal/server/http"
	servicecart "github.com/Additional-Code/kitchen/internal/service/cart"
	servicecatalog "github.com/Additional-Code/kitchen/internal/service/catalog"
	serviceorder "github.com/Additional-Code/kitchen/internal/service/order"
	servicereport "github.com/Additional-Code/kitchen/internal/service/report"
	transporthttp "github.com/Additional-Code/kitchen/internal/transport/http"
	"github.com/Additional-Code/kitchen/internal/worker"
	workerorder "github.com/Additional-Code/kitchen/internal/worker/order"
)

// Infra provides configuration, logging, storage and telemetry.
var Infra = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Infra,
	repositoryorder.Module,
	repositorycart.Module,
	repositorycatalog.Module,
	repositoryaddress.Module,
	transactor.Module,
	geo.Module,
	payment.Module,
	serviceorder.Module,
	servicecart.Module,
	servicecatalog.Module,
	servicereport.Module,
)

// HTTP wires the HTTP transport and the gRPC health endpoint on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Scheduler runs the periodic order sweeps.
var Scheduler = fx.Options(
	Core,
	scheduler.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
