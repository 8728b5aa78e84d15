package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/khaledhikmat/seat-go/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		detections []model.Detection
		status     model.SeatStatus
		confidence float64
	}{
		{"nil list", nil, model.SeatFree, 0},
		{"empty list", []model.Detection{}, model.SeatFree, 0},
		{
			"other classes only",
			[]model.Detection{{ClassName: "person", Confidence: 0.99}, {ClassName: "bag", Confidence: 0.8}},
			model.SeatFree, 0,
		},
		{
			"single positive",
			[]model.Detection{{ClassName: "occupied", Confidence: 0.62}, {ClassName: "person", Confidence: 0.91}},
			model.SeatOccupied, 0.62,
		},
		{
			"max of positives",
			[]model.Detection{
				{ClassName: "occupied", Confidence: 0.51},
				{ClassName: "occupied", Confidence: 0.83},
				{ClassName: "occupied", Confidence: 0.7},
			},
			model.SeatOccupied, 0.83,
		},
		{
			"class name match is exact",
			[]model.Detection{{ClassName: "Occupied", Confidence: 0.9}},
			model.SeatFree, 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, confidence := Classify(tc.detections, "occupied")
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.confidence, confidence)
		})
	}
}
