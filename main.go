package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/khaledhikmat/seat-go/mode"
	"github.com/khaledhikmat/seat-go/pipeline"
	"github.com/khaledhikmat/seat-go/service/config"
	"github.com/khaledhikmat/seat-go/service/data"
	"github.com/khaledhikmat/seat-go/service/inference"
	"github.com/khaledhikmat/seat-go/service/inference/yolo"
	"github.com/khaledhikmat/seat-go/service/lgr"
	"github.com/khaledhikmat/seat-go/service/metrics"
	"github.com/khaledhikmat/seat-go/service/storage"
	"github.com/khaledhikmat/seat-go/service/tracing"
)

const (
	// WARNING: this has to be bigger that the mode processor shutdown time
	waitOnShutdown = 8 * time.Second
)

var modeProcessors = map[string]mode.Processor{
	"server":     mode.Server,
	"import":     mode.Import,
	"categories": mode.Categories,
	"migrate":    mode.Migrate,
}

// Only the server needs a model loaded
var needsInference = map[string]bool{
	"server": true,
}

func main() {
	rootCtx := context.Background()
	canxCtx, canxFn := context.WithCancel(rootCtx)

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}()

	// Load env vars if we are in DEV mode
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		lgr.Logger.Info("loading env vars from .env file")
		err := godotenv.Load()
		if err != nil {
			lgr.Logger.Warn("no .env file loaded", slog.Any("error", xerrors.New(err)))
		}
	}

	// Config service
	cfgSvc := config.NewEnv()

	lgr.Init(lgr.Options{
		Level: cfgSvc.GetLogLevel(),
		Dev:   cfgSvc.GetRunTimeEnv() == "dev",
		File:  cfgSvc.GetLogFile(),
	})

	modeType := "server"
	args := os.Args[1:]
	if len(args) > 0 {
		modeType = args[0]
		args = args[1:]
	}

	modeProc, ok := modeProcessors[modeType]
	if !ok {
		lgr.Logger.Error("invalid mode", slog.String("mode", modeType))
		panic("invalid mode")
	}

	// Create the services needed for the mode processor
	svcs, closeFn, err := newServices(canxCtx, cfgSvc, needsInference[modeType])
	if err != nil {
		lgr.Logger.Error("error creating services", slog.Any("error", xerrors.New(err)))
		panic("error creating services")
	}
	defer closeFn()

	// Create mode processor result
	modeProcResult := make(chan error, 1)

	// Start the mode processor
	go func() {
		modeProcResult <- modeProc(canxCtx, svcs, args)
	}()

	// Wait for cancellation or mode proc
	modeDone := false
	select {
	case <-canxCtx.Done():
		lgr.Logger.Info(
			"seat detector context cancelled",
		)

	case err := <-modeProcResult:
		modeDone = true
		if err != nil {
			lgr.Logger.Info(
				"seat detector mode processor exited",
				slog.String("mode", modeType),
				slog.Any("error", xerrors.New(err)),
			)
		}
	}

	// Cancel the context if not already cancelled
	if canxCtx.Err() == nil {
		canxFn()
	}

	if modeDone {
		return
	}

	lgr.Logger.Info(
		"seat detector is waiting for the mode processor to exit",
	)

	// Wait in a non-blocking way for `waitOnShutdown` for the mode processor to exit
	timer := time.NewTimer(waitOnShutdown)
	defer timer.Stop()

	select {
	case <-timer.C:
		lgr.Logger.Info(
			"seat detector shutdown waiting period expired. Exiting now",
			slog.Duration("period", waitOnShutdown),
		)

	case err := <-modeProcResult:
		if err != nil {
			lgr.Logger.Info(
				"seat detector mode processor exited",
				slog.Any("error", xerrors.New(err)),
			)
		}
	}
}

// newServices builds every service from configuration. The returned func releases them.
func newServices(canxCtx context.Context, cfgSvc config.IService, withInference bool) (pipeline.ServicesFactory, func(), error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsSvc, err := metrics.NewMetrics(registry)
	if err != nil {
		return pipeline.ServicesFactory{}, nil, err
	}

	// Tracer provider, also installed globally for outbound propagation
	tp, err := tracing.NewProvider(cfgSvc, os.Stdout)
	if err != nil {
		return pipeline.ServicesFactory{}, nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	shutdownTracing := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			lgr.Logger.Error("error flushing spans", slog.Any("error", xerrors.New(err)))
		}
	}

	// Data service
	dataSvc, err := newDataService(canxCtx, cfgSvc)
	if err != nil {
		shutdownTracing()
		return pipeline.ServicesFactory{}, nil, err
	}

	// Inference service
	var inferenceSvc inference.IService = inference.NewFake(inference.Result{}, nil)
	if withInference {
		inferenceSvc, err = newInferenceService(cfgSvc)
		if err != nil {
			_ = dataSvc.Close()
			shutdownTracing()
			return pipeline.ServicesFactory{}, nil, err
		}
	}

	svcs := pipeline.ServicesFactory{
		CfgSvc:         cfgSvc,
		DataSvc:        dataSvc,
		InferenceSvc:   inferenceSvc,
		StorageSvc:     storage.NewLocal(cfgSvc),
		Metrics:        metricsSvc,
		TracerProvider: tp,
	}

	closeFn := func() {
		if err := inferenceSvc.Close(); err != nil {
			lgr.Logger.Error("error closing inference service", slog.Any("error", xerrors.New(err)))
		}
		if err := dataSvc.Close(); err != nil {
			lgr.Logger.Error("error closing data service", slog.Any("error", xerrors.New(err)))
		}
		shutdownTracing()
	}
	return svcs, closeFn, nil
}

func newDataService(canxCtx context.Context, cfgSvc config.IService) (data.IService, error) {
	switch cfgSvc.GetStoreBackend() {
	case "firestore":
		return data.NewFirestore(canxCtx, cfgSvc)
	case "sqlite":
		return data.NewSQLite(cfgSvc.GetSQLitePath())
	case "files":
		return data.NewFilesDB(cfgSvc), nil
	case "memory":
		return data.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfgSvc.GetStoreBackend())
	}
}

func newInferenceService(cfgSvc config.IService) (inference.IService, error) {
	switch cfgSvc.GetInferenceBackend() {
	case "yolo":
		return yolo.New(cfgSvc)
	case "remote":
		if cfgSvc.GetInferenceURL() == "" {
			return nil, fmt.Errorf("INFERENCE_URL is required for the remote backend")
		}
		return inference.NewRemote(cfgSvc.GetInferenceURL(), &http.Client{
			Timeout:   60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}), nil
	case "fake":
		return inference.NewFake(inference.Result{}, nil), nil
	default:
		return nil, fmt.Errorf("unknown inference backend %q", cfgSvc.GetInferenceBackend())
	}
}
