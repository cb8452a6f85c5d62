package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/orderdesk/internal/cache"
	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/database"
	"github.com/Additional-Code/orderdesk/internal/jobs"
	"github.com/Additional-Code/orderdesk/internal/logger"
	"github.com/Additional-Code/orderdesk/internal/observability"
	"github.com/Additional-Code/orderdesk/internal/queue"
	repositoryorder "github.com/Additional-Code/orderdesk/internal/repository/order"
	grpcserver "github.com/Additional-Code/orderdesk/internal/server/grpc"
	httpserver "github.com/Additional-Code/orderdesk/internal/server/http"
	serviceorder "github.com/Additional-Code/orderdesk/internal/service/order"
	transporthttp "github.com/Additional-Code/orderdesk/internal/transport/http"
	"github.com/Additional-Code/orderdesk/internal/worker"
	workerorder "github.com/Additional-Code/orderdesk/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	queue.Module,
	observability.Module,
	repositoryorder.Module,
	serviceorder.Module,
)

// HTTP wires the API surface on top of the core modules: Echo transport
// plus the gRPC health endpoint.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
	grpcserver.Module,
)

// Worker exposes the fulfillment worker and the stale order scan.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
	jobs.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
