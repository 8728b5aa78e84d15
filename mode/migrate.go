package mode

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mdobak/go-xerrors"

	"github.com/khaledhikmat/seat-go/model"
	"github.com/khaledhikmat/seat-go/pipeline"
	"github.com/khaledhikmat/seat-go/service/data"
	"github.com/khaledhikmat/seat-go/service/lgr"
)

type MigrateStats struct {
	Scanned    int
	Updated    int
	AlreadySet int
	Unparsable int
	Failed     int
}

// Migrate backfills the number field of seats created before it existed.
func Migrate(canxCtx context.Context, svcs pipeline.ServicesFactory, _ []string) error {
	stats, err := migrateSeatNumbers(canxCtx, svcs.DataSvc, svcs.CfgSvc.GetSeatsCollection())
	if err != nil {
		procError(canxCtx, svcs, model.GenError("migrate",
			err,
			map[string]interface{}{"stats": stats},
			"seat number migration stopped"))
		return err
	}

	lgr.Logger.Info("seat number migration done",
		slog.Int("scanned", stats.Scanned),
		slog.Int("updated", stats.Updated),
		slog.Int("alreadySet", stats.AlreadySet),
		slog.Int("unparsable", stats.Unparsable),
		slog.Int("failed", stats.Failed),
	)
	return nil
}

// migrateSeatNumbers only ever writes the number field. A failed write is logged and the
// scan moves on to the next seat.
func migrateSeatNumbers(ctx context.Context, datasvc data.IService, collection string) (MigrateStats, error) {
	stats := MigrateStats{}

	for doc, err := range datasvc.StreamAll(ctx, collection) {
		if err != nil {
			return stats, fmt.Errorf("streaming %s: %w", collection, err)
		}
		stats.Scanned++

		if v, ok := doc.Fields[model.FieldNumber]; ok && v != nil {
			stats.AlreadySet++
			continue
		}

		number := model.ParseSeatNumber(doc.ID)
		if number == nil {
			lgr.Logger.Warn("could not parse seat number, skipping", slog.String("seat", doc.ID))
			stats.Unparsable++
			continue
		}

		if err := datasvc.MergeSet(ctx, collection, doc.ID, map[string]any{model.FieldNumber: *number}); err != nil {
			lgr.Logger.Error("error updating seat number",
				slog.String("seat", doc.ID),
				slog.Any("error", xerrors.New(err)),
			)
			stats.Failed++
			continue
		}

		lgr.Logger.Debug("seat number set", slog.String("seat", doc.ID), slog.Int("number", *number))
		stats.Updated++
	}

	return stats, nil
}
