package inference

import (
	"context"
	"image"

	"github.com/khaledhikmat/seat-go/model"
)

type Options struct {
	Confidence float32 // minimum score for a detection to be reported
	ImageSize  int     // inference resolution on the long side
}

type Result struct {
	Detections []model.Detection `json:"detections"`
	// Annotated holds the rendered image (JPEG) when the runtime hands it back directly.
	// Nil means the runtime only wrote it to its own output folders.
	Annotated []byte `json:"-"`
}

type IService interface {
	Detect(ctx context.Context, img image.Image, opts Options) (Result, error)
	Close() error
}
