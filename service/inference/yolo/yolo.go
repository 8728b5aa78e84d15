package yolo

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/seat-go/model"
	"github.com/khaledhikmat/seat-go/service/config"
	"github.com/khaledhikmat/seat-go/service/inference"
	"github.com/khaledhikmat/seat-go/service/lgr"
)

const defaultImageSize = 640

var (
	boxColor  = color.RGBA{R: 0, G: 200, B: 255, A: 0}
	padColor  = color.RGBA{R: 114, G: 114, B: 114, A: 0}
	textColor = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// yoloService runs an ONNX YOLO export through the OpenCV DNN module.
type yoloService struct {
	nets         chan *gocv.Net
	names        []string
	nmsThreshold float32
}

func New(cfgsvc config.IService) (inference.IService, error) {
	modelPath := cfgsvc.GetModelPath()
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("no yolo model at %s: %w", modelPath, err)
	}

	names := inference.NamesOrIDs(cfgsvc.GetModelNamesPath())

	lgr.Logger.Info("yolo adapter starting...",
		slog.String("model", modelPath),
		slog.Int("classes", len(names)),
		slog.Int("workers", cfgsvc.GetInferenceWorkers()),
		slog.String("openCV", gocv.Version()),
	)

	svc := &yoloService{
		nets:         make(chan *gocv.Net, cfgsvc.GetInferenceWorkers()),
		names:        names,
		nmsThreshold: cfgsvc.GetNMSThreshold(),
	}

	// WARNING: net is not thread-safe!!!
	// So each slot gets its own copy and a request holds one for the whole forward pass
	for i := 0; i < cfgsvc.GetInferenceWorkers(); i++ {
		net := gocv.ReadNet(modelPath, "")
		if net.Empty() {
			svc.Close()
			return nil, fmt.Errorf("worker %d: error reading yolo model", i)
		}

		if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
			net.Close()
			svc.Close()
			return nil, fmt.Errorf("error setting backend: %w", err)
		}

		if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
			net.Close()
			svc.Close()
			return nil, fmt.Errorf("error setting target: %w", err)
		}

		svc.nets <- &net
	}

	return svc, nil
}

func (svc *yoloService) Detect(ctx context.Context, img image.Image, opts inference.Options) (inference.Result, error) {
	var net *gocv.Net
	select {
	case net = <-svc.nets:
	case <-ctx.Done():
		return inference.Result{}, ctx.Err()
	}
	defer func() { svc.nets <- net }()

	frame, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return inference.Result{}, fmt.Errorf("converting image: %w", err)
	}
	defer frame.Close()

	if frame.Empty() {
		return inference.Result{}, fmt.Errorf("empty frame")
	}

	size := opts.ImageSize
	if size <= 0 {
		size = defaultImageSize
	}
	lb := inference.NewLetterbox(frame.Cols(), frame.Rows(), size)

	resized := gocv.NewMat()
	defer resized.Close()
	if err := gocv.Resize(frame, &resized, image.Pt(lb.Width, lb.Height), 0, 0, gocv.InterpolationLinear); err != nil {
		return inference.Result{}, fmt.Errorf("resizing frame: %w", err)
	}

	padded := gocv.NewMat()
	defer padded.Close()
	if err := gocv.CopyMakeBorder(resized, &padded,
		lb.PadY, lb.Size-lb.Height-lb.PadY,
		lb.PadX, lb.Size-lb.Width-lb.PadX,
		gocv.BorderConstant, padColor); err != nil {
		return inference.Result{}, fmt.Errorf("padding frame: %w", err)
	}

	blob := gocv.BlobFromImage(padded, 1.0/255.0, image.Pt(lb.Size, lb.Size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	net.SetInput(blob, "")

	output := net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return inference.Result{}, fmt.Errorf("reading output: %w", err)
	}

	candidates, err := inference.DecodeOutput(data, output.Size(), opts.Confidence)
	if err != nil {
		return inference.Result{}, err
	}

	detections := svc.suppress(candidates, lb, frame.Cols(), frame.Rows(), opts.Confidence)

	annotated, err := svc.render(frame, detections)
	if err != nil {
		return inference.Result{}, err
	}

	return inference.Result{
		Detections: detections,
		Annotated:  annotated,
	}, nil
}

func (svc *yoloService) Close() error {
	for {
		select {
		case net := <-svc.nets:
			net.Close()
		default:
			return nil
		}
	}
}

// suppress applies NMS and maps the survivors back onto the source frame.
func (svc *yoloService) suppress(candidates []inference.Candidate, lb inference.Letterbox, width, height int, confThreshold float32) []model.Detection {
	detections := []model.Detection{}
	if len(candidates) == 0 {
		return detections
	}

	rects := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		// Offset per class so boxes of different classes never suppress each other
		offset := c.ClassID * lb.Size * 2
		rects[i] = image.Rect(
			int(c.Box[0])+offset, int(c.Box[1])+offset,
			int(c.Box[2])+offset, int(c.Box[3])+offset,
		)
		scores[i] = c.Score
	}

	for _, idx := range gocv.NMSBoxes(rects, scores, confThreshold, svc.nmsThreshold) {
		c := candidates[idx]
		detections = append(detections, model.Detection{
			ClassID:     c.ClassID,
			ClassName:   inference.ClassName(svc.names, c.ClassID),
			Confidence:  float64(c.Score),
			BoundingBox: lb.ToImage(c.Box, width, height),
		})
	}

	return detections
}

func (svc *yoloService) render(frame gocv.Mat, detections []model.Detection) ([]byte, error) {
	canvas := frame.Clone()
	defer canvas.Close()

	for _, d := range detections {
		r := image.Rect(int(d.BoundingBox[0]), int(d.BoundingBox[1]), int(d.BoundingBox[2]), int(d.BoundingBox[3]))
		gocv.Rectangle(&canvas, r, boxColor, 2)

		label := fmt.Sprintf("%s %.2f", d.ClassName, d.Confidence)
		origin := image.Pt(r.Min.X, max(r.Min.Y-6, 12))
		gocv.PutText(&canvas, label, origin, gocv.FontHersheySimplex, 0.5, textColor, 1)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, canvas)
	if err != nil {
		return nil, fmt.Errorf("encoding annotated image: %w", err)
	}
	defer buf.Close()

	// The native buffer is freed on Close, keep a Go copy
	return append([]byte(nil), buf.GetBytes()...), nil
}
