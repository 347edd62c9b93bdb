package controllers

import (
	"net/http"

	"github.com/angelmondragon/poslane/api/responses"
	"github.com/angelmondragon/poslane/api/validators"
	"github.com/angelmondragon/poslane/internal/scan"
	"github.com/angelmondragon/poslane/pkg/logger"
)

type scanRequest struct {
	Code string `json:"code" validate:"required"`
}

type scanResponse struct {
	Accepted bool       `json:"accepted"`
	Reason   string     `json:"reason,omitempty"`
	Item     *scan.Item `json:"item,omitempty"`
}

// ScanSubmit takes one wedge or hand-keyed code into the scan pipeline. The
// pipeline answers immediately; the outcome lands in the queue snapshot.
func ScanSubmit(session *scan.Session, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload scanRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, ok, reason := session.SubmitManual(r.Context(), payload.Code)
		response := scanResponse{Accepted: ok, Reason: reason}
		if ok {
			response.Item = &item
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, response)
	}
}

// ScanQueue returns the queue snapshot the UI renders scan feedback from.
func ScanQueue(queue *scan.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, queue.Snapshot())
	}
}

type sessionStartRequest struct {
	Continuous bool `json:"continuous"`
}

// ScanSessionStart arms the camera session.
func ScanSessionStart(session *scan.Session, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload sessionStartRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		if err := session.Start(r.Context(), payload.Continuous); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session.Status())
	}
}

// ScanSessionStop releases the camera.
func ScanSessionStop(session *scan.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session.Stop(r.Context())
		responses.WriteSuccess(w, session.Status())
	}
}

// ScanSessionStatus reports the armed state and any outcome message still in
// its display window.
func ScanSessionStatus(session *scan.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, session.Status())
	}
}
