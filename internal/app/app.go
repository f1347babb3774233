package app

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/Funclose/Ef-HomeWork/internal/config"
	"github.com/Funclose/Ef-HomeWork/internal/database"
	"github.com/Funclose/Ef-HomeWork/internal/logger"
	"github.com/Funclose/Ef-HomeWork/internal/messaging"
	"github.com/Funclose/Ef-HomeWork/internal/observability"
	repositoryorder "github.com/Funclose/Ef-HomeWork/internal/repository/order"
	"github.com/Funclose/Ef-HomeWork/internal/seeder"
	grpcserver "github.com/Funclose/Ef-HomeWork/internal/server/grpc"
	httpserver "github.com/Funclose/Ef-HomeWork/internal/server/http"
	serviceorder "github.com/Funclose/Ef-HomeWork/internal/service/order"
	transporthttp "github.com/Funclose/Ef-HomeWork/internal/transport/http"
	"github.com/Funclose/Ef-HomeWork/internal/worker"
	workerorder "github.com/Funclose/Ef-HomeWork/internal/worker/order"
)

// Core provides the foundational modules shared across executables. Callers
// supply the config.Source.
var Core = fx.Options(
	config.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositoryorder.Module,
	serviceorder.Module,
	seeder.Module,
	// Providers are installed globally on start, before any span is opened.
	fx.Invoke(func(*observability.Manager) {}),
)

// HTTP wires the HTTP and gRPC servers on top of the core modules.
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

// Module is the default application wiring (servers only).
var Module = HTTP

// Logged routes Fx lifecycle events through the application logger.
var Logged = fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: l}
})

// New builds an Fx application reading settings from src.
func New(src config.Source, opts ...fx.Option) *fx.App {
	return fx.New(append([]fx.Option{fx.Supply(src)}, opts...)...)
}
