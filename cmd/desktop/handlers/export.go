package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/backup"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/db"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/export"
)

// ExportHandler handles archive export/import and off-device backup.
type ExportHandler struct {
	service *export.Service
	repo    *db.Repository
	backups *backup.Service
	events  ExportBroadcaster
}

// ExportBroadcaster pushes export outcomes to connected UI clients.
// The WebSocket hub implements it; a nil broadcaster drops the events.
type ExportBroadcaster interface {
	BroadcastExportCompleted(filePath string, sizeBytes int64, itemCount int, checksum string)
	BroadcastExportFailed(errMsg string)
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(service *export.Service, repo *db.Repository, backups *backup.Service) *ExportHandler {
	return &ExportHandler{service: service, repo: repo, backups: backups}
}

// SetBroadcaster wires the WebSocket hub in after construction.
func (h *ExportHandler) SetBroadcaster(events ExportBroadcaster) {
	h.events = events
}

// exportRequest is the body for triggering an export.
type exportRequest struct {
	Password   string `json:"password"`
	OutputPath string `json:"output_path"`
}

// importRequest is the body for restoring an archive.
type importRequest struct {
	ArchivePath string `json:"archive_path"`
	Password    string `json:"password"`
}

// Export handles POST /api/v1/export
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request exportRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.Export(&export.ExportConfig{
		OutputPath: request.OutputPath,
		Password:   request.Password,
	})
	if err != nil {
		if h.events != nil {
			h.events.BroadcastExportFailed(err.Error())
		}
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	if h.events != nil {
		h.events.BroadcastExportCompleted(result.FilePath, result.SizeBytes, result.ItemCount, result.Checksum)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

// Import handles POST /api/v1/import
func (h *ExportHandler) Import(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request importRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if request.ArchivePath == "" {
		http.Error(w, "archive_path is required", http.StatusBadRequest)
		return
	}

	result, err := h.service.Import(&export.ImportConfig{
		ArchivePath: request.ArchivePath,
		Password:    request.Password,
	})
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// ListArchives handles GET /api/v1/export/archives
func (h *ExportHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	archives, err := h.repo.ListReportArchives()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"archives": archives,
		"total":    len(archives),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetBackupTarget handles GET /api/v1/backup
//
// The secret key never leaves the credential store; the response only
// says whether keys are present.
func (h *ExportHandler) GetBackupTarget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"enabled": h.backups.Enabled(),
	}

	if cred, err := h.backups.Current(); err == nil && cred != nil {
		response["provider"] = cred.Provider
		response["endpoint"] = cred.Endpoint
		response["bucket"] = cred.BucketName
		response["region"] = cred.Region
		response["has_keys"] = cred.HasKeys()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// ConfigureBackup handles PUT /api/v1/backup
func (h *ExportHandler) ConfigureBackup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var target backup.Target
	if err := json.NewDecoder(r.Body).Decode(&target); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.backups.Configure(target); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"enabled":  true,
		"provider": target.Provider,
		"bucket":   target.Bucket,
	})
}

// DisableBackup handles DELETE /api/v1/backup
func (h *ExportHandler) DisableBackup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.backups.Disable(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadArchive handles POST /api/v1/backup/upload
func (h *ExportHandler) UploadArchive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		ArchivePath string `json:"archive_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if request.ArchivePath == "" {
		http.Error(w, "archive_path is required", http.StatusBadRequest)
		return
	}

	uploader, err := h.backups.Uploader()
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	key, err := uploader.UploadFile(r.Context(), request.ArchivePath)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"key": key,
	})
}
