package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mnemos-io/mnemos/internal/lifecycle"
)

// Operation timeouts. Maintenance and backup touch every memory; the single
// phases are lighter.
const (
	phaseTimeout       = 300 * time.Second
	maintenanceTimeout = 600 * time.Second
	queryTimeout       = 60 * time.Second
)

func (s *Server) handleLifecycleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.lifecycle.Status())
}

// handleLifecycleConfig applies runtime overrides from one flat key map.
// Recovery bounds and retry limits are routed to their owning services;
// everything else goes to the lifecycle policy, which rejects unknown keys.
// Each group applies atomically.
func (s *Server) handleLifecycleConfig(w http.ResponseWriter, r *http.Request) {
	var overrides map[string]any
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	lifecycleOv := make(map[string]any)
	recoveryOv := make(map[string]any)
	retryCfg := s.retry.Config()
	retryTouched := false
	for key, val := range overrides {
		switch key {
		case "auto_fix_max_issues", "backup_retention_days", "validation_batch_size":
			recoveryOv[key] = val
		case "max_retry_attempts", "retry_base_delay_ms", "retry_max_delay_ms":
			n, ok := asInt(val)
			if !ok {
				http.Error(w, fmt.Sprintf(`{"error":%q}`, key+": not an integer"), http.StatusBadRequest)
				return
			}
			switch key {
			case "max_retry_attempts":
				retryCfg.MaxAttempts = n
			case "retry_base_delay_ms":
				retryCfg.BaseDelay = time.Duration(n) * time.Millisecond
			case "retry_max_delay_ms":
				retryCfg.MaxDelay = time.Duration(n) * time.Millisecond
			}
			retryTouched = true
		default:
			lifecycleOv[key] = val
		}
	}

	if err := s.lifecycle.UpdateConfig(lifecycleOv); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
		return
	}
	if len(recoveryOv) > 0 {
		if err := s.recovery.UpdateConfig(recoveryOv); err != nil {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
			return
		}
	}
	if retryTouched {
		if err := s.retry.SetConfig(retryCfg); err != nil {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
			return
		}
	}
	writeJSON(w, map[string]any{
		"status":   "ok",
		"config":   s.lifecycle.Config(),
		"recovery": s.recovery.Status(),
		"retry":    s.retry.Config(),
	})
}

// asInt coerces a decoded JSON number to an int.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	case int:
		return n, true
	}
	return 0, false
}

func (s *Server) handleLifecycleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.lifecycle.Start(); err != nil {
		if errors.Is(err, lifecycle.ErrAlreadyRunning) {
			writeJSON(w, map[string]string{"status": "already_running"})
			return
		}
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "started"})
}

func (s *Server) handleLifecycleStop(w http.ResponseWriter, r *http.Request) {
	s.lifecycle.Stop()
	writeJSON(w, map[string]string{"status": "stopped"})
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), maintenanceTimeout)
	defer cancel()

	result := s.lifecycle.RunDailyMaintenance(ctx)
	writeJSON(w, result)
}

func (s *Server) handleDecay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), phaseTimeout)
	defer cancel()

	result, err := s.lifecycle.ApplyImportanceDecay(ctx)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), phaseTimeout)
	defer cancel()

	stats, err := s.lifecycle.CleanupLowImportanceMemories(ctx)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), phaseTimeout)
	defer cancel()

	result, err := s.lifecycle.ConsolidateSimilarMemories(ctx)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	threshold := 0.0
	if t := r.URL.Query().Get("threshold"); t != "" {
		f, err := strconv.ParseFloat(t, 64)
		if err != nil || f <= 0 || f > 1 {
			http.Error(w, `{"error":"threshold must be in (0,1]"}`, http.StatusBadRequest)
			return
		}
		threshold = f
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	pairs, err := s.lifecycle.DetectDuplicateMemories(ctx, userID, threshold)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"count":      len(pairs),
		"duplicates": pairs,
	})
}

func (s *Server) handleRecoveryStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.recovery.Status())
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	ops := s.recovery.Operations()
	writeJSON(w, map[string]any{
		"count":      len(ops),
		"operations": ops,
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemoryIDs []string `json:"memory_ids"`
		UserID    string   `json:"user_id"`
	}
	if err := decodeOrEmpty(r, &req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), phaseTimeout)
	defer cancel()

	issues, err := s.recovery.ValidateMemoryData(ctx, req.MemoryIDs, req.UserID)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"count":  len(issues),
		"issues": issues,
	})
}

// handleRepair validates the requested scope and repairs what it finds in one
// pass, so callers never have to round-trip issue lists.
func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemoryIDs   []string `json:"memory_ids"`
		UserID      string   `json:"user_id"`
		AutoFixOnly *bool    `json:"auto_fix_only"`
	}
	if err := decodeOrEmpty(r, &req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	autoFixOnly := true
	if req.AutoFixOnly != nil {
		autoFixOnly = *req.AutoFixOnly
	}

	ctx, cancel := context.WithTimeout(r.Context(), phaseTimeout)
	defer cancel()

	issues, err := s.recovery.ValidateMemoryData(ctx, req.MemoryIDs, req.UserID)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}
	result, err := s.recovery.RepairMemoryIssues(ctx, issues, autoFixOnly)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"status":       result.Status,
		"issues_found": len(issues),
		"fixed_issues": result.FixedIssues,
	})
}

func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string   `json:"name"`
		UserID      string   `json:"user_id"`
		MemoryTypes []string `json:"memory_types"`
	}
	if err := decodeOrEmpty(r, &req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), maintenanceTimeout)
	defer cancel()

	ok, err := s.recovery.CreateBackup(ctx, req.Name, req.UserID, req.MemoryTypes)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if ok {
		w.WriteHeader(http.StatusCreated)
	}
	json.NewEncoder(w).Encode(map[string]any{"created": ok})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BackupName        string   `json:"backup_name"`
		MemoryIDs         []string `json:"memory_ids"`
		OverwriteExisting bool     `json:"overwrite_existing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.BackupName == "" {
		http.Error(w, `{"error":"backup_name required"}`, http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), maintenanceTimeout)
	defer cancel()

	ok, err := s.recovery.RestoreFromBackup(ctx, req.BackupName, req.MemoryIDs, req.OverwriteExisting)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"restored": ok})
}

// decodeOrEmpty decodes a JSON body into v. A missing body is fine; every
// field of these requests is optional.
func decodeOrEmpty(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
