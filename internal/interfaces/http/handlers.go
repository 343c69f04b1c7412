package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/bid-reconciler/internal/application/dispatcher"
	"github.com/garyjia/bid-reconciler/internal/application/pipeline"
	"github.com/garyjia/bid-reconciler/internal/application/service"
	"github.com/garyjia/bid-reconciler/internal/domain/entity"
	domainwf "github.com/garyjia/bid-reconciler/internal/domain/workflow"
	"github.com/garyjia/bid-reconciler/internal/infrastructure/sheet"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	importService  service.ImportService
	dispatcher     dispatcher.Dispatcher
	decoder        *sheet.Decoder
	maxUploadBytes int64
	logger         Logger

	shutdown  chan struct{}
	closeOnce sync.Once
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	importService service.ImportService,
	events dispatcher.Dispatcher,
	decoder *sheet.Decoder,
	maxUploadBytes int64,
	logger Logger,
) *Handlers {
	return &Handlers{
		importService:  importService,
		dispatcher:     events,
		decoder:        decoder,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
		shutdown:       make(chan struct{}),
	}
}

// CloseStreams ends every open event stream
func (h *Handlers) CloseStreams() {
	h.closeOnce.Do(func() { close(h.shutdown) })
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// StartRunRequest is the body of POST /api/runs
type StartRunRequest struct {
	TenderID string `json:"tenderId" binding:"required"`
	BidderID string `json:"bidderId" binding:"required"`
}

// MappingRequest is the body of POST /api/runs/:id/mapping
type MappingRequest struct {
	Mappings []entity.ColumnMapping `json:"mappings"`
}

// AssignRequest is the body of POST /api/runs/:id/items/:itemId/assign
type AssignRequest struct {
	BoqItemID string `json:"boqItemId" binding:"required"`
}

// CommitRequest is the body of POST /api/runs/:id/commit
type CommitRequest struct {
	ForceImport bool `json:"forceImport"`
}

// RewindRequest is the body of POST /api/runs/:id/rewind
type RewindRequest struct {
	Target string `json:"target" binding:"required"`
}

// BoqRequest is the JSON body of PUT /api/tenders/:tenderId/boq
type BoqRequest struct {
	Items []entity.MasterBoqItem `json:"items"`
}

// BoqResponse acknowledges a BOQ replacement
type BoqResponse struct {
	TenderID  string `json:"tenderId"`
	ItemCount int    `json:"itemCount"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// StartRun handles POST /api/runs
func (h *Handlers) StartRun(c *gin.Context) {
	var req StartRunRequest
	if !h.bind(c, &req) {
		return
	}

	snap, err := h.importService.StartRun(c.Request.Context(), req.TenderID, req.BidderID)
	if err != nil {
		h.fail(c, "Failed to start run", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: snap})
}

// GetRun handles GET /api/runs/:id
func (h *Handlers) GetRun(c *gin.Context) {
	snap, err := h.importService.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get run", err)
		return
	}
	h.ok(c, snap)
}

// CancelRun handles DELETE /api/runs/:id
func (h *Handlers) CancelRun(c *gin.Context) {
	if err := h.importService.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "Failed to cancel run", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ParseSheet handles POST /api/runs/:id/parse. The body is either a JSON
// ParsedSheet or a multipart form with the workbook in field "file".
func (h *Handlers) ParseSheet(c *gin.Context) {
	var parsed entity.ParsedSheet

	if isMultipart(c) {
		var err error
		parsed, err = decodeUpload(c, h.maxUploadBytes, h.decoder.Decode)
		if err != nil {
			h.badRequest(c, "invalid workbook", err)
			return
		}
	} else if !h.bind(c, &parsed) {
		return
	}

	snap, err := h.importService.Parse(c.Request.Context(), c.Param("id"), parsed)
	if err != nil {
		h.fail(c, "Failed to parse sheet", err)
		return
	}
	h.ok(c, snap)
}

// MapColumns handles POST /api/runs/:id/mapping. The body is optional;
// without it every column is inferred.
func (h *Handlers) MapColumns(c *gin.Context) {
	var req MappingRequest
	if !h.bindOptional(c, &req) {
		return
	}

	for _, m := range req.Mappings {
		if !m.TargetField.IsValid() {
			h.badRequest(c, "invalid mapping", fmt.Errorf("unknown target field %q", m.TargetField))
			return
		}
	}

	outcome, err := h.importService.Map(c.Request.Context(), c.Param("id"), req.Mappings)
	if err != nil {
		h.fail(c, "Failed to map columns", err)
		return
	}
	h.ok(c, outcome)
}

// MatchItems handles POST /api/runs/:id/match
func (h *Handlers) MatchItems(c *gin.Context) {
	result, err := h.importService.Match(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to match items", err)
		return
	}
	h.ok(c, result)
}

// AssignToBoq handles POST /api/runs/:id/items/:itemId/assign
func (h *Handlers) AssignToBoq(c *gin.Context) {
	var req AssignRequest
	if !h.bind(c, &req) {
		return
	}

	result, err := h.importService.AssignToBoq(c.Request.Context(), c.Param("id"), c.Param("itemId"), req.BoqItemID)
	if err != nil {
		h.fail(c, "Failed to assign item", err)
		return
	}
	h.ok(c, result)
}

// MarkAsExtra handles POST /api/runs/:id/items/:itemId/extra
func (h *Handlers) MarkAsExtra(c *gin.Context) {
	result, err := h.importService.MarkAsExtra(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	if err != nil {
		h.fail(c, "Failed to mark item as extra", err)
		return
	}
	h.ok(c, result)
}

// Normalize handles POST /api/runs/:id/normalize
func (h *Handlers) Normalize(c *gin.Context) {
	result, err := h.importService.Normalize(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to normalize", err)
		return
	}
	h.ok(c, result)
}

// Validate handles POST /api/runs/:id/validate
func (h *Handlers) Validate(c *gin.Context) {
	verdict, err := h.importService.Validate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to validate", err)
		return
	}
	h.ok(c, verdict)
}

// Commit handles POST /api/runs/:id/commit
func (h *Handlers) Commit(c *gin.Context) {
	var req CommitRequest
	if !h.bindOptional(c, &req) {
		return
	}

	outcome, err := h.importService.Commit(c.Request.Context(), c.Param("id"), pipeline.CommitOptions{
		ForceImport: req.ForceImport,
	})
	if err != nil {
		h.fail(c, "Failed to commit", err)
		return
	}
	h.ok(c, outcome)
}

// Rewind handles POST /api/runs/:id/rewind
func (h *Handlers) Rewind(c *gin.Context) {
	var req RewindRequest
	if !h.bind(c, &req) {
		return
	}

	target := domainwf.State(strings.ToUpper(strings.TrimSpace(req.Target)))
	if !target.IsValid() {
		h.badRequest(c, "invalid rewind target", fmt.Errorf("unknown state %q", req.Target))
		return
	}

	snap, err := h.importService.Rewind(c.Request.Context(), c.Param("id"), target)
	if err != nil {
		h.fail(c, "Failed to rewind run", err)
		return
	}
	h.ok(c, snap)
}

// DownloadReport handles GET /api/runs/:id/report
func (h *Handlers) DownloadReport(c *gin.Context) {
	report, err := h.importService.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to build report", err)
		return
	}

	snap := report.Snapshot
	if snap.Normalization == nil {
		h.fail(c, "Report requested before normalization",
			fmt.Errorf("%w: report needs a normalized run", pipeline.ErrStageOrder))
		return
	}

	content := sheet.Report{
		RunID:        snap.ID,
		TenderID:     snap.TenderID,
		BidderID:     snap.BidderID,
		BaseCurrency: snap.Normalization.Currency.BaseCurrency,
		Items:        snap.Normalization.Items,
		Master:       report.Master,
	}
	if snap.Validation != nil {
		content.Issues = snap.Validation.Issues
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="run-%s.xlsx"`, snap.ID))
	c.Status(http.StatusOK)
	if err := sheet.WriteReport(c.Writer, content); err != nil {
		h.logger.Error("Failed to write report", "run_id", snap.ID, "error", err)
	}
}

// ReplaceBoq handles PUT /api/tenders/:tenderId/boq. The body is either
// JSON items or a multipart form with the BOQ workbook in field "file".
func (h *Handlers) ReplaceBoq(c *gin.Context) {
	var items []entity.MasterBoqItem

	if isMultipart(c) {
		var err error
		items, err = decodeUpload(c, h.maxUploadBytes, h.decoder.LoadBoqWorkbook)
		if err != nil {
			h.badRequest(c, "invalid workbook", err)
			return
		}
	} else {
		var req BoqRequest
		if !h.bind(c, &req) {
			return
		}
		items = req.Items
	}

	tenderID := c.Param("tenderId")
	if err := h.importService.ReplaceBoq(c.Request.Context(), tenderID, items); err != nil {
		h.fail(c, "Failed to replace BOQ", err)
		return
	}
	h.ok(c, BoqResponse{TenderID: tenderID, ItemCount: len(items)})
}

// GetSubmission handles GET /api/tenders/:tenderId/submissions/:bidderId
func (h *Handlers) GetSubmission(c *gin.Context) {
	view, err := h.importService.GetSubmission(c.Request.Context(), c.Param("tenderId"), c.Param("bidderId"))
	if err != nil {
		h.fail(c, "Failed to get submission", err)
		return
	}
	h.ok(c, view)
}

func (h *Handlers) ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func (h *Handlers) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.badRequest(c, "invalid request body", err)
		return false
	}
	return true
}

// bindOptional accepts an empty body
func (h *Handlers) bindOptional(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, "invalid request body", err)
		return false
	}
	return true
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Error("Bad request", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   fmt.Sprintf("%s: %v", msg, err),
	})
}

// fail maps a service error to its status code
func (h *Handlers) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	h.logger.Error(msg, "path", c.Request.URL.Path, "status", status, "error", err)

	resp := Response{Success: false, Error: err.Error()}
	var mappingErr *pipeline.MappingError
	if errors.As(err, &mappingErr) {
		resp.Details = mappingErr.Validation
	}
	c.JSON(status, resp)
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// decodeUpload reads the workbook sent in form field "file"
func decodeUpload[T any](c *gin.Context, maxBytes int64, decode func(io.Reader) (T, error)) (T, error) {
	var zero T
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return zero, fmt.Errorf("missing file field: %w", err)
	}

	f, err := fh.Open()
	if err != nil {
		return zero, err
	}
	defer f.Close()

	return decode(f)
}
