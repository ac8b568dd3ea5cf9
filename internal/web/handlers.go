package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/stormline/provision/internal/logging"
	"github.com/stormline/provision/internal/provisioning"
)

// handleHealth reports liveness. Store connectivity is not probed here; a
// failing store surfaces on the next provisioning request.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"active_runs": s.limiter.ActiveCount(),
	})
}

// handleProvision accepts a multipart CSV upload and runs the reconciler.
//
// Form fields:
//   - file: the CSV (required)
//   - apply: "true" to execute writes; requires PROVISION_ALLOW_HTTP_APPLY,
//     otherwise the request is rejected rather than silently downgraded
//
// The response is the merged JSON report. Parse-level structural failures
// return 422 with the parse errors; everything row-level is in the report.
func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	if err := r.ParseMultipartForm(s.cfg.Upload.MaxFileSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "CSV exceeds the upload size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	apply, _ := strconv.ParseBool(r.FormValue("apply"))
	if apply && !s.cfg.Provision.AllowHTTPApply {
		writeError(w, http.StatusForbidden, "apply mode is disabled for the HTTP endpoint")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing CSV file field")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading upload failed")
		return
	}

	parsed := provisioning.ParseCSV(string(raw))
	if len(parsed.Rows) == 0 && len(parsed.Errors) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "CSV parsing failed",
			"errors": parsed.Errors,
		})
		return
	}

	validation := provisioning.ValidateRows(parsed.Rows)

	if err := s.limiter.Acquire(r.Context()); err != nil {
		if errors.Is(err, ErrTooManyRuns) {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for a run slot")
		return
	}
	defer s.limiter.Release()

	logger.Info("provisioning upload",
		"file", header.Filename,
		"apply", apply,
		"rows_parsed", len(parsed.Rows),
		"rows_valid", len(validation.ValidRows),
	)

	// Per-line parse errors ride along as warnings so the report caller
	// still sees them.
	warnings := append(validation.Warnings, parsed.Errors...)
	result, err := provisioning.Run(r.Context(), validation.ValidRows, s.newAdapter(), provisioning.RunOptions{
		Apply:    apply,
		Warnings: warnings,
	})
	if err != nil {
		logger.Error("provisioning run failed", "error", err)
		writeError(w, http.StatusBadGateway, "provisioning failed: "+err.Error())
		return
	}

	report := provisioning.BuildReport(result, validation.RowIssues, len(parsed.Rows))
	writeJSON(w, http.StatusOK, report)
}
