package mode

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mdobak/go-xerrors"

	"github.com/khaledhikmat/seat-go/api"
	"github.com/khaledhikmat/seat-go/model"
	"github.com/khaledhikmat/seat-go/pipeline"
	"github.com/khaledhikmat/seat-go/service/lgr"
)

// Server runs the HTTP surface until the context is cancelled.
func Server(canxCtx context.Context, svcs pipeline.ServicesFactory, _ []string) error {
	p := pipeline.New(svcs)
	defer p.Close()

	srv := &http.Server{
		Handler:      api.NewServer(svcs, p).Handler(),
		Addr:         svcs.CfgSvc.GetHTTPAddress(),
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	listenResult := make(chan error, 1)
	go func() {
		lgr.Logger.Info("seat detector listening", slog.String("address", srv.Addr))
		listenResult <- srv.ListenAndServe()
	}()

	// Wait for cancellation or a listener failure
	select {
	case <-canxCtx.Done():
		lgr.Logger.Info(
			"seat detector server context cancelled",
		)

	case err := <-listenResult:
		if !errors.Is(err, http.ErrServerClosed) {
			procError(canxCtx, svcs, model.GenError("server",
				err,
				map[string]interface{}{"address": srv.Addr},
				"http listener exited"))
			return err
		}
	}

	// In-flight detections get the shutdown period to finish
	period := time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime()) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), period)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lgr.Logger.Warn("seat detector server did not drain in time",
			slog.Duration("period", period),
			slog.Any("error", xerrors.New(err)),
		)
		return err
	}

	lgr.Logger.Info("seat detector server stopped")
	return nil
}
