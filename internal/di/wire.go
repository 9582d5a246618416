//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/Maiki02/trading-bot-sub000/pkg/config"
	"github.com/Maiki02/trading-bot-sub000/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation in wire_gen.go.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideSnapshotCache,

		// Collaborators
		ProvideSignalStore,
		ProvideNotifier,
		ProvideMarketStream,
		ProvidePatternDetector,

		// Engine and application
		ProvideEngine,
		ProvideApp,
	)
	return &server.App{}, nil
}
