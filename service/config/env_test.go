package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvFallsBackToHardcodedDefaults(t *testing.T) {
	svc := NewEnv()
	d := NewHardCoded()

	assert.InDelta(t, 0.5, svc.GetConfidenceThreshold(), 1e-6)
	assert.Equal(t, d.GetInferenceImageSize(), svc.GetInferenceImageSize())
	assert.Equal(t, d.GetOccupiedClassName(), svc.GetOccupiedClassName())
	assert.Equal(t, d.GetDefaultSeatID(), svc.GetDefaultSeatID())
	assert.Equal(t, d.GetRunsPatterns(), svc.GetRunsPatterns())
	assert.Equal(t, d.GetMaxUploadBytes(), svc.GetMaxUploadBytes())
	assert.Equal(t, "firestore", svc.GetStoreBackend())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CONF_THRESHOLD", "0.25")
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("RUNS_PATTERNS", "runs/detect/predict*, /var/runs/*,")
	t.Setenv("INFERENCE_WORKERS", "0")
	t.Setenv("MAX_UPLOAD_MB", "2")

	svc := NewEnv()

	assert.InDelta(t, 0.25, svc.GetConfidenceThreshold(), 1e-6)
	assert.Equal(t, "sqlite", svc.GetStoreBackend())
	assert.Equal(t, []string{"runs/detect/predict*", "/var/runs/*"}, svc.GetRunsPatterns())
	assert.Equal(t, 1, svc.GetInferenceWorkers())
	assert.Equal(t, int64(2<<20), svc.GetMaxUploadBytes())
}
