package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/khaledhikmat/seat-go/service/lgr"
	"github.com/khaledhikmat/seat-go/service/metrics"
	"github.com/khaledhikmat/seat-go/service/storage"
)

var artifactExtensions = []string{"*.jpg", "*.png", "*.jpeg"}

// Resolver turns the output of one inference run into a stable, servable artifact name.
type Resolver struct {
	patterns   []string
	storageSvc storage.IService
}

func NewResolver(patterns []string, storageSvc storage.IService) *Resolver {
	return &Resolver{
		patterns:   patterns,
		storageSvc: storageSvc,
	}
}

// Resolve stores the annotated image handed back by the adapter. When the adapter returned
// nothing, the newest image under the runtime output folders is copied instead.
// An empty name with a nil error means there was nothing to resolve.
//
// WARNING: the folder scan is not tied to a specific inference call. Two overlapping
// requests may both pick the image written by the later one.
func (r *Resolver) Resolve(annotated []byte) (string, string, error) {
	if len(annotated) > 0 {
		name, err := r.storageSvc.StoreBytes(annotated)
		if err != nil {
			return "", metrics.ArtifactFromAdapter, err
		}
		return name, metrics.ArtifactFromAdapter, nil
	}

	latest, ok, err := r.Latest()
	if err != nil {
		return "", metrics.ArtifactFromScan, err
	}
	if !ok {
		return "", metrics.ArtifactNone, nil
	}

	name, err := r.storageSvc.StoreFile(latest)
	if err != nil {
		return "", metrics.ArtifactFromScan, err
	}
	return name, metrics.ArtifactFromScan, nil
}

// Latest returns the most recently modified image across every folder matching the patterns.
// Ties are broken by scan order.
func (r *Resolver) Latest() (string, bool, error) {
	var (
		latestPath string
		latestTime time.Time
	)

	for _, pattern := range r.patterns {
		dirs, err := filepath.Glob(pattern)
		if err != nil {
			return "", false, fmt.Errorf("bad runs pattern %q: %w", pattern, err)
		}

		for _, dir := range dirs {
			for _, ext := range artifactExtensions {
				// Only ErrBadPattern can come back and the extensions are constant
				files, _ := filepath.Glob(filepath.Join(dir, ext))
				for _, file := range files {
					info, err := os.Stat(file)
					if err != nil || info.IsDir() {
						// The runtime may still be rotating its output
						lgr.Logger.Debug("skipping artifact candidate",
							slog.String("file", file),
							slog.Any("error", err),
						)
						continue
					}

					if latestPath == "" || info.ModTime().After(latestTime) {
						latestPath = file
						latestTime = info.ModTime()
					}
				}
			}
		}
	}

	return latestPath, latestPath != "", nil
}
