package mode

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"

	"github.com/khaledhikmat/seat-go/model"
	"github.com/khaledhikmat/seat-go/pipeline"
	"github.com/khaledhikmat/seat-go/service/data"
	"github.com/khaledhikmat/seat-go/service/lgr"
)

// Processor is one run mode of the binary. args are the command line arguments after the mode name.
type Processor func(canxCtx context.Context, svcs pipeline.ServicesFactory, args []string) error

// procError persists a mode failure so it survives the process. The store is best effort.
func procError(canxCtx context.Context, svcs pipeline.ServicesFactory, err model.CustomError) {
	lgr.Logger.Error(
		"mode processor error",
		slog.String("processor", err.Processor),
		slog.String("message", err.Message),
		slog.Any("error", xerrors.New(err.Inner)),
	)

	inner := ""
	if err.Inner != nil {
		inner = err.Inner.Error()
	}

	// The cancelled mode context must not stop the error from being written
	ctx := context.WithoutCancel(canxCtx)
	errTemp := svcs.DataSvc.MergeSet(ctx, svcs.CfgSvc.GetErrorsCollection(), uuid.NewString(), map[string]any{
		"processor":  err.Processor,
		"message":    err.Message,
		"innerError": inner,
		"stackTrace": err.StackTrace,
		"misc":       err.Misc,
		"time":       data.ServerTimestamp,
	})
	if errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			slog.Any("error", xerrors.New(errTemp)),
		)
	}
}

func requireArg(args []string, name string) (string, error) {
	if len(args) == 0 || args[0] == "" {
		return "", fmt.Errorf("missing %s argument", name)
	}
	return args[0], nil
}
