package model

import (
	"math"
	"strconv"
	"strings"
	"time"
)

type SeatStatus string

const (
	SeatOccupied SeatStatus = "occupied"
	SeatFree     SeatStatus = "free"
)

// Field names owned by the detection pipeline inside a seat document.
const (
	FieldStatus      = "status"
	FieldConfidence  = "confidence"
	FieldLastUpdated = "last_updated"
	FieldNumber      = "number"
)

// Detection is one object reported by the model for a single inference call.
type Detection struct {
	ClassID     int        `json:"class_id"`
	ClassName   string     `json:"class_name"`
	Confidence  float64    `json:"conf"`
	BoundingBox [4]float64 `json:"box_xyxy"` // x1, y1, x2, y2 in pixels
}

// SeatState is the typed view of a seat document. Fields the pipeline does not own are kept in
// Extra so a read-modify-write never drops them.
type SeatState struct {
	SeatID      string         `json:"seat_id"`
	Number      *int           `json:"number"`
	Status      SeatStatus     `json:"status"`
	Confidence  float64        `json:"confidence"`
	LastUpdated time.Time      `json:"last_updated"`
	Extra       map[string]any `json:"-"`
}

// DetectResponse is what the detect endpoint returns.
type DetectResponse struct {
	SeatID        string      `json:"seat_id"`
	Status        SeatStatus  `json:"status"`
	MaxConfidence float64     `json:"max_confidence"`
	Boxes         []Detection `json:"boxes"`
	AnnotatedURL  *string     `json:"annotated_url"`
}

// RoundConfidence rounds half away from zero at 3 decimals.
func RoundConfidence(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// ParseSeatNumber returns the integer after the first underscore of a seat id.
// "seat_12" -> 12, "seat_x" and "frontdesk" -> nil.
func ParseSeatNumber(seatID string) *int {
	_, tail, found := strings.Cut(seatID, "_")
	if !found {
		return nil
	}
	// "seat_1_a" keeps only the second segment, like split("_")[1]
	if i := strings.IndexByte(tail, '_'); i >= 0 {
		tail = tail[:i]
	}
	n, err := strconv.Atoi(tail)
	if err != nil {
		return nil
	}
	return &n
}

// SeatStateFromDocument builds a typed seat from raw document fields.
func SeatStateFromDocument(id string, fields map[string]any) SeatState {
	s := SeatState{SeatID: id, Extra: map[string]any{}}
	for k, v := range fields {
		switch k {
		case FieldStatus:
			if str, ok := v.(string); ok {
				s.Status = SeatStatus(str)
			}
		case FieldConfidence:
			if f, ok := toFloat(v); ok {
				s.Confidence = f
			}
		case FieldNumber:
			if f, ok := toFloat(v); ok {
				n := int(f)
				s.Number = &n
			}
		case FieldLastUpdated:
			s.LastUpdated = toTime(v)
		default:
			s.Extra[k] = v
		}
	}
	return s
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

func toTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err == nil {
			return parsed
		}
	}
	return time.Time{}
}
