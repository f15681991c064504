//go:build wireinject
// +build wireinject

package main

import (
	"github.com/amaumene/trackarr/internal/api"
	"github.com/amaumene/trackarr/internal/api/handlers"
	"github.com/amaumene/trackarr/internal/config"
	"github.com/amaumene/trackarr/internal/controllers"
	"github.com/amaumene/trackarr/internal/library"
	"github.com/amaumene/trackarr/internal/scraper"
	"github.com/amaumene/trackarr/internal/services/notify"
	"github.com/amaumene/trackarr/internal/services/transmission"
	"github.com/amaumene/trackarr/internal/trackers"
	"github.com/google/wire"
)

var scraperSet = wire.NewSet(
	provideLogger,
	provideDatabase,
	provideMetrics,
	provideFetcher,
	provideAuthenticator,
	trackers.DefaultCatalog,
	scraper.NewCollector,
)

func initializeApp(cfg *config.Config) (*App, func(), error) {
	wire.Build(
		scraperSet,
		provideBlacklist,
		provideStatusCache,
		provideScheduler,
		transmission.NewClient,
		library.NewReconciler,
		notify.NewNotifier,
		controllers.NewUpdateController,
		controllers.NewDownloadController,
		controllers.NewReleaseController,
		api.NewServer,
		wire.Bind(new(controllers.Collector), new(*scraper.Collector)),
		wire.Bind(new(controllers.TorrentClient), new(*transmission.Client)),
		wire.Bind(new(controllers.Notifier), new(*notify.Notifier)),
		wire.Bind(new(handlers.ReleaseService), new(*controllers.ReleaseController)),
		wire.Bind(new(handlers.TorrentProcessor), new(*controllers.DownloadController)),
		wire.Bind(new(handlers.TorrentLister), new(*transmission.Client)),
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

func initializeCollect(cfg *config.Config) (*CollectApp, func(), error) {
	wire.Build(
		scraperSet,
		wire.Struct(new(CollectApp), "*"),
	)
	return nil, nil, nil
}
