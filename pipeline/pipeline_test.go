package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/mdobak/go-xerrors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/khaledhikmat/seat-go/model"
	"github.com/khaledhikmat/seat-go/service/config"
	"github.com/khaledhikmat/seat-go/service/data"
	"github.com/khaledhikmat/seat-go/service/inference"
	"github.com/khaledhikmat/seat-go/service/metrics"
	"github.com/khaledhikmat/seat-go/service/storage"
)

type testConfig struct {
	config.IService
	results string
	runs    []string
	journal string
}

func (c testConfig) GetResultsFolder() string { return c.results }
func (c testConfig) GetRunsPatterns() []string { return c.runs }
func (c testConfig) GetDetectionsLogFile() string { return c.journal }

func newTestConfig(t *testing.T) testConfig {
	t.Helper()
	root := t.TempDir()
	return testConfig{
		IService: config.NewHardCoded(),
		results:  filepath.Join(root, "results"),
		runs:     []string{filepath.Join(root, "runs", "detect", "predict*")},
	}
}

type failingStore struct {
	data.IService
}

func (failingStore) MergeSet(context.Context, string, string, map[string]any) error {
	return errors.New("store unavailable")
}

func jpegPayload(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := 0; x < 32; x++ {
		img.Set(x, 12, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func writeImage(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, imaging.Save(image.NewRGBA(image.Rect(0, 0, 8, 8)), path))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func newPipeline(t *testing.T, cfg testConfig, adapter inference.IService, store data.IService) (*Pipeline, *metrics.Metrics) {
	t.Helper()
	m, err := metrics.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	p := New(ServicesFactory{
		CfgSvc:       cfg,
		DataSvc:      store,
		InferenceSvc: adapter,
		StorageSvc:   storage.NewLocal(cfg),
		Metrics:      m,
	})
	t.Cleanup(func() { _ = p.Close() })
	return p, m
}

func TestDetectOccupiedEndToEnd(t *testing.T) {
	cfg := newTestConfig(t)
	store := data.NewMemory()
	adapter := inference.NewFake(inference.Result{
		Detections: []model.Detection{
			{ClassID: 0, ClassName: "occupied", Confidence: 0.62, BoundingBox: [4]float64{1, 2, 10, 12}},
			{ClassID: 1, ClassName: "person", Confidence: 0.91, BoundingBox: [4]float64{3, 4, 20, 22}},
		},
		Annotated: jpegPayload(t),
	}, nil)
	p, m := newPipeline(t, cfg, adapter, store)

	resp, err := p.Detect(context.Background(), jpegPayload(t), "seat_7")
	require.NoError(t, err)

	assert.Equal(t, "seat_7", resp.SeatID)
	assert.Equal(t, model.SeatOccupied, resp.Status)
	assert.Equal(t, 0.62, resp.MaxConfidence)
	assert.Len(t, resp.Boxes, 2)
	require.NotNil(t, resp.AnnotatedURL)
	assert.True(t, strings.HasPrefix(*resp.AnnotatedURL, ResultsRoute))
	assert.FileExists(t, filepath.Join(cfg.results, strings.TrimPrefix(*resp.AnnotatedURL, ResultsRoute)))

	doc, ok, err := store.Get(context.Background(), "seats", "seat_7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "occupied", doc.Fields[model.FieldStatus])
	assert.Equal(t, 0.62, doc.Fields[model.FieldConfidence])
	assert.Equal(t, 7, doc.Fields[model.FieldNumber])
	assert.IsType(t, time.Time{}, doc.Fields[model.FieldLastUpdated])

	calls := adapter.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, float32(0.5), calls[0].Confidence)
	assert.Equal(t, 640, calls[0].ImageSize)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.DetectRequests.WithLabelValues(OutcomeOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Artifacts.WithLabelValues(metrics.ArtifactFromAdapter)))
}

func TestDetectNoDetections(t *testing.T) {
	cfg := newTestConfig(t)
	store := data.NewMemory()
	p, m := newPipeline(t, cfg, inference.NewFake(inference.Result{}, nil), store)

	resp, err := p.Detect(context.Background(), jpegPayload(t), "frontdesk")
	require.NoError(t, err)

	assert.Equal(t, model.SeatFree, resp.Status)
	assert.Equal(t, 0.0, resp.MaxConfidence)
	assert.NotNil(t, resp.Boxes)
	assert.Empty(t, resp.Boxes)
	assert.Nil(t, resp.AnnotatedURL)

	doc, ok, err := store.Get(context.Background(), "seats", "frontdesk")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "free", doc.Fields[model.FieldStatus])
	assert.Equal(t, 0.0, doc.Fields[model.FieldConfidence])
	v, present := doc.Fields[model.FieldNumber]
	assert.True(t, present)
	assert.Nil(t, v)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Artifacts.WithLabelValues(metrics.ArtifactNone)))
}

func TestDetectDefaultsSeatID(t *testing.T) {
	cfg := newTestConfig(t)
	p, _ := newPipeline(t, cfg, inference.NewFake(inference.Result{}, nil), data.NewMemory())

	resp, err := p.Detect(context.Background(), jpegPayload(t), "")
	require.NoError(t, err)
	assert.Equal(t, "seat_1", resp.SeatID)
}

func TestDetectRoundsConfidence(t *testing.T) {
	cfg := newTestConfig(t)
	store := data.NewMemory()
	adapter := inference.NewFake(inference.Result{
		Detections: []model.Detection{{ClassName: "occupied", Confidence: 0.87654}},
	}, nil)
	p, _ := newPipeline(t, cfg, adapter, store)

	resp, err := p.Detect(context.Background(), jpegPayload(t), "seat_2")
	require.NoError(t, err)
	assert.Equal(t, 0.877, resp.MaxConfidence)

	doc, _, err := store.Get(context.Background(), "seats", "seat_2")
	require.NoError(t, err)
	assert.Equal(t, 0.877, doc.Fields[model.FieldConfidence])
}

func TestDetectIsIdempotent(t *testing.T) {
	cfg := newTestConfig(t)
	store := data.NewMemory()
	adapter := inference.NewFake(inference.Result{
		Detections: []model.Detection{{ClassName: "occupied", Confidence: 0.7}},
	}, nil)
	p, _ := newPipeline(t, cfg, adapter, store)

	_, err := p.Detect(context.Background(), jpegPayload(t), "seat_3")
	require.NoError(t, err)
	first, _, err := store.Get(context.Background(), "seats", "seat_3")
	require.NoError(t, err)

	_, err = p.Detect(context.Background(), jpegPayload(t), "seat_3")
	require.NoError(t, err)
	second, _, err := store.Get(context.Background(), "seats", "seat_3")
	require.NoError(t, err)

	assert.Equal(t, first.Fields[model.FieldStatus], second.Fields[model.FieldStatus])
	assert.Equal(t, first.Fields[model.FieldConfidence], second.Fields[model.FieldConfidence])
	assert.Equal(t, first.Fields[model.FieldNumber], second.Fields[model.FieldNumber])
	assert.Len(t, second.Fields, 4)
}

func TestDetectPreservesUnrelatedFields(t *testing.T) {
	cfg := newTestConfig(t)
	store := data.NewMemory()
	require.NoError(t, store.MergeSet(context.Background(), "seats", "seat_4", map[string]any{"label": "window"}))

	p, _ := newPipeline(t, cfg, inference.NewFake(inference.Result{}, nil), store)
	_, err := p.Detect(context.Background(), jpegPayload(t), "seat_4")
	require.NoError(t, err)

	doc, _, err := store.Get(context.Background(), "seats", "seat_4")
	require.NoError(t, err)
	assert.Equal(t, "window", doc.Fields["label"])
	assert.Equal(t, "free", doc.Fields[model.FieldStatus])

	seat := model.SeatStateFromDocument(doc.ID, doc.Fields)
	assert.Equal(t, "window", seat.Extra["label"])
	require.NotNil(t, seat.Number)
	assert.Equal(t, 4, *seat.Number)
}

func TestDetectInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"not an image", []byte("definitely not a jpeg")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newTestConfig(t)
			store := data.NewMemory()
			adapter := inference.NewFake(inference.Result{}, nil)
			p, _ := newPipeline(t, cfg, adapter, store)

			_, err := p.Detect(context.Background(), tc.payload, "seat_5")
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrInvalidInput)
			assert.Empty(t, adapter.Calls())

			_, ok, err := store.Get(context.Background(), "seats", "seat_5")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestDetectAdapterError(t *testing.T) {
	cfg := newTestConfig(t)
	store := data.NewMemory()
	boom := errors.New("weights corrupt")
	p, m := newPipeline(t, cfg, inference.NewFake(inference.Result{}, boom), store)

	_, err := p.Detect(context.Background(), jpegPayload(t), "seat_6")
	assert.ErrorIs(t, err, model.ErrAdapter)
	assert.ErrorIs(t, err, boom)

	_, ok, err := store.Get(context.Background(), "seats", "seat_6")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DetectRequests.WithLabelValues(OutcomeAdapter)))
}

func TestDetectStoreWriteError(t *testing.T) {
	cfg := newTestConfig(t)
	p, m := newPipeline(t, cfg, inference.NewFake(inference.Result{}, nil), failingStore{IService: data.NewMemory()})

	_, err := p.Detect(context.Background(), jpegPayload(t), "seat_8")
	assert.ErrorIs(t, err, model.ErrStoreWrite)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StoreWriteErrors.WithLabelValues("seats")))
}

func TestDetectFallsBackToRunsScan(t *testing.T) {
	cfg := newTestConfig(t)
	runsRoot := filepath.Dir(cfg.runs[0])
	now := time.Now()
	writeImage(t, filepath.Join(runsRoot, "predict", "old.jpg"), now.Add(-time.Hour))
	writeImage(t, filepath.Join(runsRoot, "predict2", "new.png"), now)

	p, m := newPipeline(t, cfg, inference.NewFake(inference.Result{}, nil), data.NewMemory())
	resp, err := p.Detect(context.Background(), jpegPayload(t), "seat_9")
	require.NoError(t, err)

	require.NotNil(t, resp.AnnotatedURL)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Artifacts.WithLabelValues(metrics.ArtifactFromScan)))
}

func TestSeatFields(t *testing.T) {
	fields := SeatFields("seat_12", model.SeatOccupied, 0.5)
	assert.Equal(t, 12, fields[model.FieldNumber])
	assert.Equal(t, data.ServerTimestamp, fields[model.FieldLastUpdated])

	fields = SeatFields("seat_x", model.SeatFree, 0)
	v, ok := fields[model.FieldNumber]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestDetectRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	cfg := newTestConfig(t)
	p := New(ServicesFactory{
		CfgSvc:         cfg,
		DataSvc:        data.NewMemory(),
		InferenceSvc:   inference.NewFake(inference.Result{}, nil),
		StorageSvc:     storage.NewLocal(cfg),
		TracerProvider: tp,
	})
	t.Cleanup(func() { _ = p.Close() })

	_, err := p.Detect(context.Background(), jpegPayload(t), "seat_3")
	require.NoError(t, err)

	names := []string{}
	var root sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
		if s.Name() == "pipeline.detect" {
			root = s
		}
	}
	assert.ElementsMatch(t, []string{
		"pipeline.decode", "pipeline.infer", "pipeline.classify",
		"pipeline.resolve", "pipeline.persist", "pipeline.detect",
	}, names)

	require.NotNil(t, root)
	for _, s := range recorder.Ended() {
		assert.Equal(t, root.SpanContext().TraceID(), s.SpanContext().TraceID())
	}
}

func TestDetectErrorCarriesStackAndSpanStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	cfg := newTestConfig(t)
	p := New(ServicesFactory{
		CfgSvc:         cfg,
		DataSvc:        failingStore{IService: data.NewMemory()},
		InferenceSvc:   inference.NewFake(inference.Result{}, nil),
		StorageSvc:     storage.NewLocal(cfg),
		TracerProvider: tp,
	})
	t.Cleanup(func() { _ = p.Close() })

	_, err := p.Detect(context.Background(), jpegPayload(t), "seat_8")
	require.ErrorIs(t, err, model.ErrStoreWrite)
	assert.Equal(t, "seat state write failed: store unavailable", err.Error())
	assert.NotEmpty(t, xerrors.StackTrace(err))

	for _, s := range recorder.Ended() {
		if s.Name() == "pipeline.detect" {
			assert.Equal(t, codes.Error, s.Status().Code)
		}
	}
}
