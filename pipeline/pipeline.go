package pipeline

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	"github.com/mdobak/go-xerrors"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/khaledhikmat/seat-go/model"
	"github.com/khaledhikmat/seat-go/service/data"
	"github.com/khaledhikmat/seat-go/service/inference"
	"github.com/khaledhikmat/seat-go/service/lgr"
)

// ResultsRoute is the URL prefix under which resolved artifacts are served.
const ResultsRoute = "/results/"

const TracerName = "seat-go/pipeline"

// Request outcomes reported to metrics.
const (
	OutcomeOK           = "ok"
	OutcomeInvalidInput = "invalid_input"
	OutcomeAdapter      = "adapter_error"
	OutcomeArtifact     = "artifact_error"
	OutcomeStoreWrite   = "store_error"
)

// Pipeline reconciles one seat image into the seat's stored state.
type Pipeline struct {
	svcs     ServicesFactory
	resolver *Resolver
	journal  *Journal
	tracer   trace.Tracer
}

func New(svcs ServicesFactory) *Pipeline {
	var provider trace.TracerProvider = noop.NewTracerProvider()
	if svcs.TracerProvider != nil {
		provider = svcs.TracerProvider
	}

	return &Pipeline{
		svcs:     svcs,
		resolver: NewResolver(svcs.CfgSvc.GetRunsPatterns(), svcs.StorageSvc),
		journal:  NewJournal(svcs.CfgSvc.GetDetectionsLogFile()),
		tracer:   provider.Tracer(TracerName),
	}
}

// Detect decodes payload, runs the model, classifies, resolves the annotated artifact and
// merge-writes the verdict under seatID. Each failing step ends the run. Only the last step
// mutates the store.
func (p *Pipeline) Detect(ctx context.Context, payload []byte, seatID string) (model.DetectResponse, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.detect")
	defer span.End()

	if seatID == "" {
		seatID = p.svcs.CfgSvc.GetDefaultSeatID()
	}
	logger := lgr.FromContext(ctx).With(slog.String("seat", seatID))

	img, err := p.decode(ctx, payload)
	if err != nil {
		p.svcs.Metrics.RecordRequest(OutcomeInvalidInput)
		return model.DetectResponse{}, failed(span, xerrors.New(model.ErrInvalidInput, err))
	}

	result, err := p.infer(ctx, img)
	if err != nil {
		p.svcs.Metrics.RecordRequest(OutcomeAdapter)
		return model.DetectResponse{}, failed(span, xerrors.New(model.ErrAdapter, err))
	}

	_, classifySpan := p.tracer.Start(ctx, "pipeline.classify")
	status, confidence := Classify(result.Detections, p.svcs.CfgSvc.GetOccupiedClassName())
	classifySpan.End()

	_, resolveSpan := p.tracer.Start(ctx, "pipeline.resolve")
	artifact, source, err := p.resolver.Resolve(result.Annotated)
	resolveSpan.End()
	if err != nil {
		p.svcs.Metrics.RecordRequest(OutcomeArtifact)
		return model.DetectResponse{}, failed(span, xerrors.New(model.ErrArtifact, err))
	}
	p.svcs.Metrics.RecordArtifact(source)

	confidence = model.RoundConfidence(confidence)
	if err := p.persist(ctx, seatID, status, confidence); err != nil {
		p.svcs.Metrics.RecordRequest(OutcomeStoreWrite)
		p.svcs.Metrics.RecordStoreWriteError(p.svcs.CfgSvc.GetSeatsCollection())
		return model.DetectResponse{}, failed(span, xerrors.New(model.ErrStoreWrite, err))
	}

	p.svcs.Metrics.RecordRequest(OutcomeOK)
	p.svcs.Metrics.RecordVerdict(string(status))
	p.journal.Record(seatID, status, confidence, result.Detections)

	logger.Info("seat state updated",
		slog.String("status", string(status)),
		slog.Float64("confidence", confidence),
		slog.Int("detections", len(result.Detections)),
		slog.String("artifact", artifact),
	)

	resp := model.DetectResponse{
		SeatID:        seatID,
		Status:        status,
		MaxConfidence: confidence,
		Boxes:         result.Detections,
	}
	if resp.Boxes == nil {
		resp.Boxes = []model.Detection{}
	}
	if artifact != "" {
		url := ResultsRoute + artifact
		resp.AnnotatedURL = &url
	}
	return resp, nil
}

// failed marks span as errored and returns err.
func failed(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (p *Pipeline) Close() error {
	return p.journal.Close()
}

func (p *Pipeline) decode(ctx context.Context, payload []byte) (image.Image, error) {
	_, span := p.tracer.Start(ctx, "pipeline.decode")
	defer span.End()

	if len(payload) == 0 {
		return nil, xerrors.Message("empty image payload")
	}

	img, err := imaging.Decode(bytes.NewReader(payload), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	// Normalise palette, gray and CMYK inputs to a single 8-bit colour layout
	return imaging.Clone(img), nil
}

func (p *Pipeline) infer(ctx context.Context, img image.Image) (inference.Result, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.infer")
	defer span.End()

	start := time.Now()
	result, err := p.svcs.InferenceSvc.Detect(ctx, img, inference.Options{
		Confidence: p.svcs.CfgSvc.GetConfidenceThreshold(),
		ImageSize:  p.svcs.CfgSvc.GetInferenceImageSize(),
	})
	p.svcs.Metrics.RecordInference(time.Since(start).Seconds(), err)
	return result, err
}

func (p *Pipeline) persist(ctx context.Context, seatID string, status model.SeatStatus, confidence float64) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.persist")
	defer span.End()

	return p.svcs.DataSvc.MergeSet(ctx, p.svcs.CfgSvc.GetSeatsCollection(), seatID, SeatFields(seatID, status, confidence))
}

// SeatFields is the exact field set a detection writes. number is an explicit null when the
// seat id carries no parsable number.
func SeatFields(seatID string, status model.SeatStatus, confidence float64) map[string]any {
	var number any
	if n := model.ParseSeatNumber(seatID); n != nil {
		number = *n
	}

	return map[string]any{
		model.FieldStatus:      string(status),
		model.FieldConfidence:  confidence,
		model.FieldLastUpdated: data.ServerTimestamp,
		model.FieldNumber:      number,
	}
}
