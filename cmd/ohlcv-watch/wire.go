//go:build wireinject
// +build wireinject

package main

import (
	"ohlcv-watch/internal/app"
	"ohlcv-watch/internal/source"

	"github.com/google/wire"
)

// InitializeApp builds App from command-line args via Wire.
// Caller must call the cleanup func when done; it flushes the event stream.
func InitializeApp(args app.Args) (*App, func(), error) {
	wire.Build(
		app.ProvideConfig,
		app.ProvideLocation,
		app.ProvideSink,
		app.ProvideBridgeClient,
		app.ProvideDataSource,
		wire.Bind(new(source.DataSource), new(*source.Reconnecting)),
		app.ProvideTargets,
		app.ProvideEventLog,
		app.ProvideStats,
		app.ProvideWatcher,
		app.ProvideDriver,
		wire.Struct(new(App), "Config", "Source", "Driver", "Events"),
	)
	return nil, nil, nil
}
