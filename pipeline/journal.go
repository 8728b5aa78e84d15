package pipeline

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/natefinch/lumberjack"

	"github.com/khaledhikmat/seat-go/model"
	"github.com/khaledhikmat/seat-go/service/lgr"
)

// Journal appends one JSON entry per pipeline run to a rotated detections log.
// A nil *Journal records nothing.
type Journal struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// NewJournal returns nil when fileName is empty.
func NewJournal(fileName string) *Journal {
	if fileName == "" {
		return nil
	}

	return &Journal{
		w: &lumberjack.Logger{
			Filename:   fileName,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     7,    // days
			Compress:   true, // compress old logs
		},
	}
}

func (j *Journal) Record(seatID string, status model.SeatStatus, confidence float64, detections []model.Detection) {
	if j == nil {
		return
	}

	entry := map[string]interface{}{
		"time":       time.Now().UTC().Format(time.RFC3339),
		"seat":       seatID,
		"status":     status,
		"confidence": confidence,
		"detections": detections,
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		lgr.Logger.Error("error marshaling detections", slog.Any("error", xerrors.New(err)))
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.w.Write(append(jsonData, '\n')); err != nil {
		lgr.Logger.Error("error writing to detection log file", slog.Any("error", xerrors.New(err)))
	}
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.w.Close()
}
