package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mailblast/mailblast/internal/middleware"
	"github.com/mailblast/mailblast/internal/model"
	"github.com/mailblast/mailblast/internal/service"
	"github.com/mailblast/mailblast/internal/sheet"
)

// PreviewResponse lists the rendered body per row
type PreviewResponse struct {
	Columns   []string                `json:"columns"`
	Total     int                     `json:"total"`
	Fallbacks int                     `json:"fallbacks"`
	Rows      []service.PreviewResult `json:"rows"`
}

// readSheet parses the uploaded "file" form field.
func (h *Handler) readSheet(w http.ResponseWriter, r *http.Request) (*sheet.Sheet, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.Server.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, &model.ValidationError{Field: "file", Message: "file is too large"}
		}
		return nil, &model.ValidationError{Field: "file", Message: "expected a multipart form upload"}
	}

	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, &model.ValidationError{Field: "file", Message: "a recipient file is required"}
	}
	defer f.Close()

	return sheet.Parse(hdr.Filename, f)
}

// Send runs a bulk send for the uploaded sheet. The batch runs to completion
// within the request; a client disconnect cancels the remaining rows.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	s, err := h.readSheet(w, r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var provider model.Provider
	if raw := strings.TrimSpace(r.FormValue("provider")); raw != "" {
		if provider, err = model.ParseProvider(raw); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}

	job := model.SendJob{
		Provider: provider,
		Subject:  r.FormValue("subject"),
		Body:     r.FormValue("body"),
		Rows:     s.Rows,
	}

	sessionID := middleware.GetSessionID(r.Context())
	log := h.log.WithRequestID(middleware.GetRequestID(r.Context())).WithSessionID(sessionID)
	report, err := h.sendSvc.Run(r.Context(), sessionID, job, func(sent, total int, res model.SendResult) {
		log.Debug().Int("sent", sent).Int("total", total).Int("row", res.Row).Msg("send progress")
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Preview renders the body for every uploaded row without sending.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	s, err := h.readSheet(w, r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	body := r.FormValue("body")
	if strings.TrimSpace(body) == "" {
		h.writeServiceError(w, r, &model.ValidationError{Field: "body", Message: "message body must not be empty"})
		return
	}

	rows := service.Preview(body, s.Rows)
	resp := PreviewResponse{Columns: s.Columns, Total: len(rows), Rows: rows}
	for _, row := range rows {
		if row.Fallback {
			resp.Fallbacks++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
