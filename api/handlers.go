package api

import (
	"errors"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/mdobak/go-xerrors"

	"github.com/khaledhikmat/seat-go/model"
	"github.com/khaledhikmat/seat-go/service/lgr"
	"github.com/khaledhikmat/seat-go/service/storage"
)

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.svcs.CfgSvc.GetMaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Image is larger than the upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "No file in request under 'file'")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file in request under 'file'")
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid image: "+err.Error())
		return
	}

	resp, err := s.pipeline.Detect(r.Context(), payload, r.FormValue("seat_id"))
	if errors.Is(err, model.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, "Invalid image: "+err.Error())
		return
	}
	if err != nil {
		lgr.FromContext(r.Context()).Error("detection failed",
			slog.String("seat", r.FormValue("seat_id")),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	path, err := s.svcs.StorageSvc.Path(mux.Vars(r)["fname"])
	if errors.Is(err, storage.ErrInvalidName) || errors.Is(err, os.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	http.ServeFile(w, r, path)
}

func (s *Server) handleSeats(w http.ResponseWriter, r *http.Request) {
	seats := []map[string]any{}
	for doc, err := range s.svcs.DataSvc.StreamAll(r.Context(), s.svcs.CfgSvc.GetSeatsCollection()) {
		if err != nil {
			lgr.FromContext(r.Context()).Error("listing seats failed", slog.Any("error", xerrors.New(err)))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		item := maps.Clone(doc.Fields)
		if item == nil {
			item = map[string]any{}
		}
		item["id"] = doc.ID
		seats = append(seats, item)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"seats": seats})
}
