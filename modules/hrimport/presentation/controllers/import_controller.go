package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/staffbridge/staffbridge/modules/core/domain/aggregates/user"
	"github.com/staffbridge/staffbridge/modules/hrimport/domain/importjob"
	"github.com/staffbridge/staffbridge/modules/hrimport/infrastructure/persistence"
	"github.com/staffbridge/staffbridge/modules/hrimport/presentation/controllers/dtos"
	"github.com/staffbridge/staffbridge/modules/hrimport/services"
	"github.com/staffbridge/staffbridge/pkg/application"
	"github.com/staffbridge/staffbridge/pkg/composables"
	"github.com/staffbridge/staffbridge/pkg/httpapi"
	"github.com/staffbridge/staffbridge/pkg/serrors"
)

const maxImportBodyBytes = 32 << 20 // 32 MiB

type ImportController struct {
	app           application.Application
	importService *services.ImportService
	reportService *services.ErrorReportService
	basePath      string
}

func NewImportController(app application.Application) application.Controller {
	return &ImportController{
		app:           app,
		importService: app.Service(services.ImportService{}).(*services.ImportService),
		reportService: app.Service(services.ErrorReportService{}).(*services.ErrorReportService),
		basePath:      "/hr/api/imports",
	}
}

func (c *ImportController) Key() string {
	return c.basePath
}

func (c *ImportController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("", c.Submit).Methods(http.MethodPost)
	router.HandleFunc("", c.List).Methods(http.MethodGet)
	router.HandleFunc("/{id}", c.Get).Methods(http.MethodGet)
	router.HandleFunc("/{id}/trigger", c.Trigger).Methods(http.MethodPost)
	router.HandleFunc("/{id}/errors.xlsx", c.ErrorReport).Methods(http.MethodGet)
}

// ensureAdmin gates every import endpoint: bulk identity provisioning
// is an administrative capability.
func (c *ImportController) ensureAdmin(w http.ResponseWriter, r *http.Request) bool {
	account, err := composables.UseUser(r.Context())
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required", nil)
		return false
	}
	if account.Role() != user.RoleAdmin {
		_ = httpapi.WriteError(w, http.StatusForbidden, "FORBIDDEN", "admin role required", nil)
		return false
	}
	return true
}

func (c *ImportController) Submit(w http.ResponseWriter, r *http.Request) {
	if !c.ensureAdmin(w, r) {
		return
	}

	var req dtos.SubmitImportRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_BODY", "malformed request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	job, err := c.importService.Submit(r.Context(), req.Config, req.Rows)
	if err != nil {
		c.writeImportError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusAccepted, &dtos.SubmitImportResponse{
		ID:     job.ID().String(),
		Status: string(job.Status()),
	})
}

func (c *ImportController) Trigger(w http.ResponseWriter, r *http.Request) {
	if !c.ensureAdmin(w, r) {
		return
	}
	id, ok := c.jobID(w, r)
	if !ok {
		return
	}

	if err := c.importService.Trigger(r.Context(), id); err != nil {
		if errors.Is(err, services.ErrJobNotPending) {
			// informational, not a failure: somebody already moved the
			// job along, so report where it is now
			job, getErr := c.importService.GetByID(r.Context(), id)
			if getErr != nil {
				c.writeImportError(w, r, getErr)
				return
			}
			_ = httpapi.WriteJSON(w, http.StatusOK, &dtos.SubmitImportResponse{
				ID:     id.String(),
				Status: string(job.Status()),
			})
			return
		}
		c.writeImportError(w, r, err)
		return
	}
	// processing continues in the background; poll the job for progress
	_ = httpapi.WriteJSON(w, http.StatusAccepted, &dtos.SubmitImportResponse{
		ID:     id.String(),
		Status: string(importjob.StatusProcessing),
	})

	go c.processTriggered(r, id)
}

// processTriggered runs the claimed batch outside the request cycle,
// carrying over the tenant and pool from the request context.
func (c *ImportController) processTriggered(r *http.Request, id uuid.UUID) {
	ctx := composables.WithPool(context.WithoutCancel(r.Context()), c.app.DB())
	if err := c.importService.Process(ctx, id); err != nil {
		c.app.Logger().WithField("job_id", id).WithError(err).Error("triggered import processing failed")
	}
}

func (c *ImportController) Get(w http.ResponseWriter, r *http.Request) {
	if !c.ensureAdmin(w, r) {
		return
	}
	id, ok := c.jobID(w, r)
	if !ok {
		return
	}

	job, err := c.importService.GetByID(r.Context(), id)
	if err != nil {
		c.writeImportError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.ToImportJobResponse(job))
}

func (c *ImportController) List(w http.ResponseWriter, r *http.Request) {
	if !c.ensureAdmin(w, r) {
		return
	}

	params := &importjob.FindParams{}
	query := r.URL.Query()
	if limit := query.Get("limit"); limit != "" {
		fmt.Sscanf(limit, "%d", &params.Limit)
	}
	if offset := query.Get("offset"); offset != "" {
		fmt.Sscanf(offset, "%d", &params.Offset)
	}
	if status := query.Get("status"); status != "" {
		parsed, err := importjob.NewStatus(status)
		if err != nil {
			_ = httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		params.Status = parsed
	}

	jobs, err := c.importService.ListRecent(r.Context(), params)
	if err != nil {
		c.writeImportError(w, r, err)
		return
	}
	summaries := make([]*dtos.ImportJobSummaryResponse, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, dtos.ToImportJobSummaryResponse(job))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, summaries)
}

func (c *ImportController) ErrorReport(w http.ResponseWriter, r *http.Request) {
	if !c.ensureAdmin(w, r) {
		return
	}
	id, ok := c.jobID(w, r)
	if !ok {
		return
	}

	report, err := c.reportService.GenerateXLSX(r.Context(), id)
	if err != nil {
		c.writeImportError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "import-errors-"+id.String()+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report)
}

func (c *ImportController) jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "job id must be a uuid", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (c *ImportController) writeImportError(w http.ResponseWriter, r *http.Request, err error) {
	var coded *serrors.Base
	switch {
	case errors.As(err, &coded):
		meta := map[string]string(nil)
		if coded.Hint != "" {
			meta = map[string]string{"hint": coded.Hint}
		}
		_ = httpapi.WriteError(w, http.StatusBadRequest, coded.Code, coded.Message, meta)
	case errors.Is(err, services.ErrEmptyBatch),
		errors.Is(err, services.ErrBatchTooLarge):
		_ = httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, services.ErrJobNotFinished):
		_ = httpapi.WriteError(w, http.StatusConflict, "JOB_NOT_FINISHED", err.Error(), nil)
	case errors.Is(err, persistence.ErrImportJobNotFound):
		_ = httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "import job not found", nil)
	default:
		composables.UseLogger(r.Context()).WithError(err).Error("import request failed")
		_ = httpapi.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}
