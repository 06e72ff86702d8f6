package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ignite/searchterm-optimizer/internal/datanorm"
)

const (
	defaultImportLimit = 50
	maxImportLimit     = 200
)

// ImportStatus returns health and run state of the S3 inbox watcher.
func (h *Handlers) ImportStatus(w http.ResponseWriter, r *http.Request) {
	if h.imports == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"initialized": false})
		return
	}
	respondJSON(w, http.StatusOK, struct {
		Initialized bool `json:"initialized"`
		datanorm.Status
	}{true, h.imports.Status()})
}

// TriggerImport starts a watcher cycle in the background.
func (h *Handlers) TriggerImport(w http.ResponseWriter, r *http.Request) {
	if h.imports == nil {
		respondError(w, http.StatusServiceUnavailable, "import watcher not enabled")
		return
	}
	if h.imports.Status().Running {
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "already_running"})
		return
	}
	h.imports.Trigger()
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

// ListImports returns recent report_import_log entries.
func (h *Handlers) ListImports(w http.ResponseWriter, r *http.Request) {
	if h.imports == nil {
		respondError(w, http.StatusServiceUnavailable, "import watcher not enabled")
		return
	}

	limit := defaultImportLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxImportLimit {
			limit = n
		}
	}
	status := r.URL.Query().Get("status")
	switch status {
	case "", datanorm.StatusPending, datanorm.StatusProcessing, datanorm.StatusCompleted,
		datanorm.StatusFailed, datanorm.StatusSkipped:
	default:
		respondError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(status))
		return
	}

	logs, err := h.imports.ListImports(r.Context(), status, limit)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if logs == nil {
		logs = []datanorm.ImportLogEntry{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"imports": logs,
		"limit":   limit,
	})
}

// RetryImport requeues a failed or skipped inbox file.
func (h *Handlers) RetryImport(w http.ResponseWriter, r *http.Request) {
	if h.imports == nil {
		respondError(w, http.StatusServiceUnavailable, "import watcher not enabled")
		return
	}
	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Key) == "" {
		respondError(w, http.StatusBadRequest, "body must be {\"key\": \"<s3 key>\"}")
		return
	}
	ok, err := h.imports.Retry(r.Context(), req.Key)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "no failed or skipped import for key")
		return
	}
	h.imports.Trigger()
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "requeued", "key": req.Key})
}
