package reports

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/de-tools/pivot-reports/pkg/adapters"
	"github.com/de-tools/pivot-reports/pkg/models/api"
	"github.com/de-tools/pivot-reports/pkg/services/config"
	"github.com/de-tools/pivot-reports/pkg/services/lifecycle"
	"github.com/de-tools/pivot-reports/pkg/services/pivot"
	"github.com/de-tools/pivot-reports/pkg/services/reports"
	"github.com/de-tools/pivot-reports/pkg/services/requester"
	"github.com/de-tools/pivot-reports/pkg/storage/local"
	storereports "github.com/de-tools/pivot-reports/pkg/store/reports"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	reportTitle = "Pivot Report"

	maxBodyBytes = 1 << 20
)

type Handler struct {
	service reports.Service
}

func NewHandler(service reports.Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the report endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/reports", h.Submit)
	r.Get("/reports/history", h.History)
	r.Get("/reports/{requestId}/ready", h.Readiness)
	r.Post("/reports/callback/{token}", h.Callback)
	r.Post("/reports/pivot", h.Pivot)
	r.Post("/reports/run", h.Run)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	var body api.SubmitReportRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	requestID, err := h.service.Submit(ctx, body.Profile, adapters.MapApiParametersToDomain(body.ReportParameters))
	switch {
	case err == nil:
	case errors.Is(err, reports.ErrInvalidParameters), errors.Is(err, config.ErrProfileNotFound):
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	default:
		logger.Error().Err(err).Msg("failed to submit report request")
		writeJSON(w, r, http.StatusOK, api.SubmitReportResponse{
			Success: false,
			Message: "Failed to request the report",
		})
		return
	}

	writeJSON(w, r, http.StatusOK, api.SubmitReportResponse{Success: true, RequestID: requestID})
}

func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi.URLParam(r, "requestId")

	report, err := h.service.Get(ctx, requestID)
	if errors.Is(err, storereports.ErrNotFound) {
		writeJSON(w, r, http.StatusOK, api.ReadinessResponse{Success: false, Message: "Request ID not found"})
		return
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("request_id", requestID).Msg("failed to check readiness")
		writeError(w, r, http.StatusInternalServerError, "failed to check report status")
		return
	}

	payload := adapters.MapReportRequestDomainToApi(*report)
	writeJSON(w, r, http.StatusOK, api.ReadinessResponse{
		Success: true,
		Ready:   report.Ready,
		CSVPath: report.CSVPath,
		Payload: &payload,
	})
}

// Callback always answers 200 so the reports API does not retry; failures are only logged.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	rawToken := chi.URLParam(r, "token")

	var body api.CallbackNotification
	if err := decodeBody(w, r, &body); err != nil {
		logger.Warn().Err(err).Msg("undecodable callback body")
		writeJSON(w, r, http.StatusOK, api.CallbackResponse{Message: "Invalid callback"})
		return
	}
	if rawToken == "" || body.RequestID == "" || body.Links.DownloadReport.Href == "" {
		writeJSON(w, r, http.StatusOK, api.CallbackResponse{Message: "Invalid callback"})
		return
	}

	err := h.service.HandleCallback(ctx, rawToken, reports.Notification{
		RequestID:    body.RequestID,
		DownloadHref: body.Links.DownloadReport.Href,
	})
	if err != nil {
		logger.Error().Err(err).Str("request_id", body.RequestID).Msg("callback processing failed")
		writeJSON(w, r, http.StatusOK, api.CallbackResponse{Message: "Callback could not be processed"})
		return
	}

	writeJSON(w, r, http.StatusOK, api.CallbackResponse{Success: true})
}

func (h *Handler) Pivot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body api.PivotRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.CSVPath == "" && body.RequestID == "" {
		writeError(w, r, http.StatusBadRequest, "csvPath or requestId is required")
		return
	}

	res, err := h.service.Pivot(ctx, reports.PivotInput{
		CSVPath:   body.CSVPath,
		RequestID: body.RequestID,
		Params:    adapters.MapApiParametersToDomain(body.ReportParameters),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, pivotResponse(res))
}

func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body api.RunReportRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.service.Run(ctx, body.Profile, adapters.MapApiParametersToDomain(body.ReportParameters))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, pivotResponse(res))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile := r.URL.Query().Get("profile")

	history, err := h.service.History(ctx, profile)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("profile", profile).Msg("failed to list report history")
		writeError(w, r, http.StatusInternalServerError, "failed to list reports")
		return
	}

	response := api.HistoryResponse{Success: true, Reports: make([]api.ReportRequest, 0, len(history))}
	for _, report := range history {
		response.Reports = append(response.Reports, adapters.MapReportRequestDomainToApi(report))
	}
	writeJSON(w, r, http.StatusOK, response)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var columnErr *pivot.ColumnValidationError

	status := http.StatusInternalServerError
	message := "failed to generate the report"
	switch {
	case errors.Is(err, reports.ErrInvalidParameters),
		errors.Is(err, pivot.ErrGroupByRequired),
		errors.Is(err, config.ErrProfileNotFound):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, local.ErrUnsafePath), errors.Is(err, local.ErrNotCSV):
		status, message = http.StatusBadRequest, "invalid CSV path"
	case errors.Is(err, local.ErrFileNotFound):
		status, message = http.StatusNotFound, "CSV file not found"
	case errors.Is(err, storereports.ErrNotFound):
		status, message = http.StatusNotFound, "Request ID not found"
	case errors.Is(err, reports.ErrNotReady):
		status, message = http.StatusConflict, err.Error()
	case errors.As(err, &columnErr):
		status, message = http.StatusUnprocessableEntity, columnErr.Error()
	case errors.Is(err, pivot.ErrEmptySource), errors.Is(err, pivot.ErrMalformedSource):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, lifecycle.ErrPollTimeout):
		status, message = http.StatusRequestTimeout, "report was not ready in time"
	case errors.Is(err, requester.ErrRequestRejected):
		status, message = http.StatusBadRequest, "report request was rejected"
	}

	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("report generation failed")
	} else {
		zerolog.Ctx(r.Context()).Warn().Err(err).Int("status", status).Msg("report generation refused")
	}
	writeError(w, r, status, message)
}

func pivotResponse(res *reports.PivotResult) api.PivotResponse {
	params := adapters.MapDomainParametersToApi(res.Params)
	return api.PivotResponse{
		Success: true,
		CSVPath: res.CSVPath,
		Report: &api.PivotReport{
			Title:           reportTitle,
			Data:            adapters.MapReportDocumentDomainToApi(res.Document),
			DateFrom:        params.DateFrom,
			DateTo:          params.DateTo,
			AccountID:       params.AccountID,
			GroupBy:         params.GroupBy,
			InternalGroupBy: params.InternalGroupBy,
			ShowTotalBy:     params.ShowTotalBy,
			PriceColumns:    params.PriceColumns,
		},
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, api.ErrorResponse{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Str("path", r.URL.Path).
			Msg("failed to encode response")
	}
}
