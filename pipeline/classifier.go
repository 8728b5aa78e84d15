package pipeline

import "github.com/khaledhikmat/seat-go/model"

// Classify turns detections into a seat verdict. Any detection of positiveClass makes the seat
// occupied and the confidence is the best score among those. Other classes are ignored.
func Classify(detections []model.Detection, positiveClass string) (model.SeatStatus, float64) {
	found := false
	best := 0.0
	for _, d := range detections {
		if d.ClassName != positiveClass {
			continue
		}
		if !found || d.Confidence > best {
			best = d.Confidence
		}
		found = true
	}

	if !found {
		return model.SeatFree, 0.0
	}
	return model.SeatOccupied, best
}
