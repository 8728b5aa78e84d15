package mode

import (
	"context"
	"log/slog"

	"github.com/khaledhikmat/seat-go/catalog"
	"github.com/khaledhikmat/seat-go/model"
	"github.com/khaledhikmat/seat-go/pipeline"
	"github.com/khaledhikmat/seat-go/service/lgr"
)

// Import loads the CSV named by the first argument into the books collection.
func Import(canxCtx context.Context, svcs pipeline.ServicesFactory, args []string) error {
	path, err := requireArg(args, "csv path")
	if err != nil {
		return err
	}

	stats, err := catalog.ImportFile(canxCtx, path, svcs.DataSvc, catalog.ImportOptions{
		Collection:    svcs.CfgSvc.GetBooksCollection(),
		KeyField:      svcs.CfgSvc.GetCatalogKeyField(),
		CategoryField: svcs.CfgSvc.GetCatalogCategoryField(),
	})
	svcs.Metrics.RecordCatalogRows(stats.Written, stats.Skipped)
	if err != nil {
		procError(canxCtx, svcs, model.GenError("import",
			err,
			map[string]interface{}{"path": path, "stats": stats},
			"catalog import stopped"))
		return err
	}

	lgr.Logger.Info("catalog import done",
		slog.String("path", path),
		slog.Int("rows", stats.Rows),
		slog.Int("written", stats.Written),
		slog.Int("skipped", stats.Skipped),
		slog.Int("batches", stats.Batches),
	)
	return nil
}

// Categories rebuilds the category index from the books collection.
func Categories(canxCtx context.Context, svcs pipeline.ServicesFactory, _ []string) error {
	categories, err := catalog.ExtractCategories(canxCtx, svcs.DataSvc, catalog.ExtractOptions{
		BooksCollection:      svcs.CfgSvc.GetBooksCollection(),
		CategoriesCollection: svcs.CfgSvc.GetCategoriesCollection(),
		CategoryField:        svcs.CfgSvc.GetCatalogCategoryField(),
	})
	if err != nil {
		procError(canxCtx, svcs, model.GenError("categories",
			err,
			map[string]interface{}{},
			"category extraction stopped"))
		return err
	}

	lgr.Logger.Info("category index written", slog.Int("categories", len(categories)))
	return nil
}
