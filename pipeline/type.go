package pipeline

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/khaledhikmat/seat-go/service/config"
	"github.com/khaledhikmat/seat-go/service/data"
	"github.com/khaledhikmat/seat-go/service/inference"
	"github.com/khaledhikmat/seat-go/service/metrics"
	"github.com/khaledhikmat/seat-go/service/storage"
)

// ServicesFactory carries every collaborator a mode or a pipeline run needs.
// Nothing is looked up from globals, callers build it once in main.
type ServicesFactory struct {
	CfgSvc         config.IService
	DataSvc        data.IService
	InferenceSvc   inference.IService
	StorageSvc     storage.IService
	Metrics        *metrics.Metrics     // optional
	TracerProvider trace.TracerProvider // optional, defaults to a no-op provider
}
