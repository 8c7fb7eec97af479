package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/foliobooks/folio/pkg/bookdrop"
	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/database"
	"github.com/foliobooks/folio/pkg/migrations"
	"github.com/foliobooks/folio/pkg/server"
	"github.com/foliobooks/folio/pkg/version"
	"github.com/foliobooks/folio/pkg/worker"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/uptrace/bun"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting folio", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	userConfig, err := config.LoadUserConfig(cfg.UserConfigFilePath)
	if err != nil {
		log.Err(err).Fatal("user config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	wrkr := worker.New(cfg, db)
	scheduler := worker.NewScheduler(userConfig, db)

	monitor, err := startBookdropMonitor(ctx, cfg, db, log)
	if err != nil {
		log.Err(err).Fatal("bookdrop monitor error")
	}

	srv, err := server.New(cfg, db, userConfig)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}

		log.Info("server started", logger.Data{"port": listener.Addr().(*net.TCPAddr).Port})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	wrkr.Start()
	scheduler.Start()
	log.Info("worker started")

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	scheduler.Stop()
	wrkr.Shutdown()
	log.Info("worker shutdown")

	if monitor != nil {
		monitor.Stop()
		log.Info("bookdrop monitor shutdown")
	}

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}

// startBookdropMonitor creates the drop folder if needed, starts watching it,
// and sweeps up any files already sitting there. An empty configuration
// simply disables the feature.
func startBookdropMonitor(ctx context.Context, cfg *config.Config, db *bun.DB, log logger.Logger) (*bookdrop.Monitor, error) {
	if cfg.BookdropDirectory == "" {
		return nil, nil
	}
	if err := os.MkdirAll(cfg.BookdropDirectory, 0o755); err != nil {
		return nil, errors.WithStack(err)
	}

	svc := bookdrop.NewService(db)
	monitor := bookdrop.NewMonitor(svc, cfg.BookdropDirectory, cfg.BookdropQueueSize, func(pending int) {
		log.Info("bookdrop files pending review", logger.Data{"count": pending})
	})

	monitorCtx := log.WithContext(ctx)
	if err := monitor.Start(monitorCtx); err != nil {
		return nil, err
	}
	monitor.Sweep(monitorCtx)

	log.Info("bookdrop monitor started", logger.Data{"directory": cfg.BookdropDirectory})
	return monitor, nil
}
