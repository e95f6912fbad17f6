package api

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/phrazzld/taskboard/internal/api/shared"
	"github.com/phrazzld/taskboard/internal/domain"
	"github.com/phrazzld/taskboard/internal/platform/logger"
	"github.com/phrazzld/taskboard/internal/service"
)

// csvHeader is the column order of every CSV this API produces.
var csvHeader = []string{"id", "title", "description", "status", "created_at"}

// CSVHandler serves task data as CSV attachments
type CSVHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
}

// NewCSVHandler creates a new CSVHandler
func NewCSVHandler(taskService service.TaskService, logger *slog.Logger) *CSVHandler {
	if taskService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("taskService cannot be nil for CSVHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVHandler{
		taskService: taskService,
		logger:      logger.With(slog.String("component", "csv_handler")),
	}
}

// ExportTasks handles GET /api/tasks/export requests. It writes every stored
// task matching the optional status filter, newest first.
func (h *CSVHandler) ExportTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.taskService.ExportTasks(r.Context(), statusQuery(r))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to export tasks")
		return
	}

	records := make([]TaskRecord, 0, len(tasks))
	for _, task := range tasks {
		records = append(records, taskToRecord(task))
	}
	h.writeCSV(w, r, "tasks.csv", records)
}

// ConvertToCSV handles POST /convert requests. The body is a JSON array of
// task records, each with all five fields; the response is the same records
// as a CSV attachment.
func (h *CSVHandler) ConvertToCSV(w http.ResponseWriter, r *http.Request) {
	var req []ConvertRecordRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if req == nil {
		HandleAPIError(w, r, shared.NewRequestError("", "request body must be a JSON array of records"), "")
		return
	}

	records := make([]TaskRecord, 0, len(req))
	for i, item := range req {
		if err := shared.ValidateRequest(&item); err != nil {
			var reqErr *shared.RequestError
			if errors.As(err, &reqErr) {
				err = shared.NewRequestError(fmt.Sprintf("[%d].%s", i, reqErr.Field), reqErr.Message)
			}
			HandleAPIError(w, r, err, "")
			return
		}
		records = append(records, item.toRecord())
	}
	h.writeCSV(w, r, "data.csv", records)
}

func (h *CSVHandler) writeCSV(w http.ResponseWriter, r *http.Request, filename string, records []TaskRecord) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	data, err := encodeCSV(records)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to encode CSV")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Warn("failed to write CSV response", slog.String("error", err.Error()))
		return
	}

	log.Debug("CSV written",
		slog.String("filename", filename),
		slog.Int("records", len(records)))
}

// encodeCSV renders a header row followed by one row per record.
func encodeCSV(records []TaskRecord) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, rec := range records {
		row := []string{
			strconv.FormatInt(rec.ID, 10),
			rec.Title,
			rec.Description,
			rec.Status,
			rec.CreatedAt,
		}
		if err := cw.Write(row); err != nil {
			return nil, err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func taskToRecord(task domain.Task) TaskRecord {
	return TaskRecord{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status.String(),
		CreatedAt:   task.CreatedAt.Format(time.RFC3339Nano),
	}
}
