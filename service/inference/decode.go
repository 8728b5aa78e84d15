package inference

import (
	"bufio"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/mdobak/go-xerrors"

	"github.com/khaledhikmat/seat-go/service/lgr"
)

// Candidate is a box before non maximum suppression, in model input pixels.
type Candidate struct {
	ClassID int
	Score   float32
	Box     [4]float32 // x1, y1, x2, y2
}

// DecodeOutput reads a YOLO detection head. Two layouts are understood:
//   - [1, 4+nc, N]: YOLOv8 and later, cx cy w h followed by class scores
//   - [1, N, 5+nc]: YOLOv5, cx cy w h objectness followed by class scores
func DecodeOutput(data []float32, dims []int, confThreshold float32) ([]Candidate, error) {
	if len(dims) != 3 || dims[0] != 1 {
		return nil, fmt.Errorf("unexpected output dims: %v", dims)
	}
	if len(data) < dims[1]*dims[2] {
		return nil, fmt.Errorf("output has %d values, dims %v need %d", len(data), dims, dims[1]*dims[2])
	}

	if dims[1] < dims[2] {
		return decodeAttributesFirst(data, dims[1], dims[2], confThreshold)
	}
	return decodeRowsFirst(data, dims[1], dims[2], confThreshold)
}

func decodeAttributesFirst(data []float32, attrs, anchors int, confThreshold float32) ([]Candidate, error) {
	if attrs < 5 {
		return nil, fmt.Errorf("need at least 5 attributes, got %d", attrs)
	}

	at := func(attr, anchor int) float32 { return data[attr*anchors+anchor] }

	out := []Candidate{}
	for j := 0; j < anchors; j++ {
		classID, score := -1, float32(0)
		for c := 4; c < attrs; c++ {
			if s := at(c, j); s > score {
				classID, score = c-4, s
			}
		}
		if classID < 0 || score < confThreshold {
			continue
		}
		out = append(out, Candidate{
			ClassID: classID,
			Score:   score,
			Box:     xywhToXYXY(at(0, j), at(1, j), at(2, j), at(3, j)),
		})
	}
	return out, nil
}

func decodeRowsFirst(data []float32, rows, cols int, confThreshold float32) ([]Candidate, error) {
	if cols < 6 {
		return nil, fmt.Errorf("need at least 6 columns, got %d", cols)
	}

	out := []Candidate{}
	for i := 0; i < rows; i++ {
		row := data[i*cols : (i+1)*cols]
		objectness := row[4]
		if objectness < confThreshold {
			continue
		}

		classID, classScore := -1, float32(0)
		for c, s := range row[5:] {
			if s > classScore {
				classID, classScore = c, s
			}
		}

		score := objectness * classScore
		if classID < 0 || score < confThreshold {
			continue
		}
		out = append(out, Candidate{
			ClassID: classID,
			Score:   score,
			Box:     xywhToXYXY(row[0], row[1], row[2], row[3]),
		})
	}
	return out, nil
}

func xywhToXYXY(cx, cy, w, h float32) [4]float32 {
	return [4]float32{cx - w/2, cy - h/2, cx + w/2, cy + h/2}
}

// Letterbox describes how an image was scaled and padded into a square model input.
type Letterbox struct {
	Size   int
	Scale  float64
	Width  int // scaled content size
	Height int
	PadX   int // left padding
	PadY   int // top padding
}

func NewLetterbox(width, height, size int) Letterbox {
	scale := float64(size) / math.Max(float64(width), float64(height))
	// Extreme aspect ratios must not round a side away
	w := min(max(int(math.Round(float64(width)*scale)), 1), size)
	h := min(max(int(math.Round(float64(height)*scale)), 1), size)
	return Letterbox{
		Size:   size,
		Scale:  scale,
		Width:  w,
		Height: h,
		PadX:   (size - w) / 2,
		PadY:   (size - h) / 2,
	}
}

// ToImage maps a box in model input pixels back onto the source image, clamped to its bounds.
func (l Letterbox) ToImage(box [4]float32, width, height int) [4]float64 {
	clamp := func(v, hi float64) float64 { return math.Min(math.Max(v, 0), hi) }
	return [4]float64{
		clamp((float64(box[0])-float64(l.PadX))/l.Scale, float64(width)),
		clamp((float64(box[1])-float64(l.PadY))/l.Scale, float64(height)),
		clamp((float64(box[2])-float64(l.PadX))/l.Scale, float64(width)),
		clamp((float64(box[3])-float64(l.PadY))/l.Scale, float64(height)),
	}
}

// LoadNames reads one class name per line.
func LoadNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	names := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			names = append(names, line)
		}
	}
	return names, scanner.Err()
}

// NamesOrIDs loads the class names at path. On failure it returns nil so every detection is
// labelled with its class id.
func NamesOrIDs(path string) []string {
	names, err := LoadNames(path)
	if err != nil {
		lgr.Logger.Warn("class names not loaded, falling back to class ids",
			slog.String("path", path),
			slog.Any("error", xerrors.New(err)),
		)
		return nil
	}
	return names
}

// ClassName falls back to the decimal id when the model has no name for it.
func ClassName(names []string, id int) string {
	if id >= 0 && id < len(names) {
		return names[id]
	}
	return strconv.Itoa(id)
}
