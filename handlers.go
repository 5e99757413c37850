package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"mdforge/internal/job"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func readJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Upload handlers ---

func handleUpload(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		maxBytes := int64(app.configManager.Get().Server.MaxUploadSizeMB) << 20
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			writeError(w, http.StatusBadRequest, "failed to parse multipart form")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing file in upload")
			return
		}
		defer file.Close()

		up, err := app.jobs.CreateUpload(filepath.Base(header.Filename), header.Size)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if _, _, err := app.uploads.Save(up.ID, up.Filename, file); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, up)
	}
}

// --- Job handlers ---

func handleJobs(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req struct {
				UploadID  string `json:"upload_id"`
				Converter string `json:"converter"`
			}
			if err := readJSONBody(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if req.UploadID == "" {
				writeError(w, http.StatusBadRequest, "missing upload_id")
				return
			}
			j, err := app.StartJob(req.UploadID, req.Converter)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, j)
		case http.MethodGet:
			status := r.URL.Query().Get("status")
			jobs, err := app.jobs.List(status)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if jobs == nil {
				jobs = []job.Job{}
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// handleJobByID serves /api/jobs/{id} and /api/jobs/{id}/download.
func handleJobByID(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if rest == "" || rest == r.URL.Path {
			writeError(w, http.StatusBadRequest, "missing job ID")
			return
		}
		jobID, action, _ := strings.Cut(rest, "/")

		switch {
		case action == "download" && r.Method == http.MethodGet:
			downloadJob(app, w, r, jobID)
		case action == "" && r.Method == http.MethodGet:
			j, err := app.jobs.Get(jobID)
			if err != nil {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, j)
		case action == "" && r.Method == http.MethodDelete:
			deleteJob(app, w, jobID)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

func downloadJob(app *App, w http.ResponseWriter, r *http.Request, jobID string) {
	j, err := app.jobs.Get(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if j.Status != job.StatusCompleted || j.OutputPath == "" {
		writeError(w, http.StatusConflict, "job has no output yet")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filepath.Base(j.OutputPath)+"\"")
	http.ServeFile(w, r, j.OutputPath)
}

func deleteJob(app *App, w http.ResponseWriter, jobID string) {
	j, err := app.jobs.Get(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if j.OutputPath != "" {
		if err := os.Remove(j.OutputPath); err != nil && !os.IsNotExist(err) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if err := app.jobs.Delete(jobID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Drop the uploaded source once its last job is gone.
	if inUse, err := app.jobs.HasJobsForUpload(j.UploadID); err == nil && !inUse {
		if up, err := app.jobs.GetUpload(j.UploadID); err == nil {
			if err := app.uploads.Delete(up.ID, up.Filename); err != nil {
				log.Printf("Warning: delete upload file %s: %v", up.ID, err)
			}
			if err := app.jobs.DeleteUpload(up.ID); err != nil {
				log.Printf("Warning: delete upload record %s: %v", up.ID, err)
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- Converter listing ---

func handleConverters(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"converters": app.registry.Supported(),
		})
	}
}

// --- Config handlers ---

func handleConfig(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, app.configManager.Get())
		case http.MethodPut:
			var updates map[string]interface{}
			if err := readJSONBody(r, &updates); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if err := app.configManager.Update(updates); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}
