package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/underlog/underlog"
	"github.com/underlog/underlog/internal/store"
)

const defaultProjectName = "Untitled Project"

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type projectDetail struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Body       string   `json:"body"`
	ImageNames []string `json:"image_names"`
}

type createProjectRequest struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

type updateProjectRequest struct {
	Name   string         `json:"name"`
	Body   string         `json:"body"`
	Images []projectImage `json:"images"` // the client's full image set
}

type projectImage struct {
	Name       string `json:"name"`
	BlobBase64 string `json:"blob_base64,omitempty"`
}

type renderResponse struct {
	SVG         string                `json:"svg"`
	TOC         []underlog.TOCEntry   `json:"toc"`
	Diagnostics []underlog.Diagnostic `json:"diagnostics"`
	Pages       int                   `json:"pages"`
}

type pdfRequest struct {
	Input string `json:"input"` // serialized multi-page SVG
}

// --- Auth ---

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error("hashing password", "error", err)
		s.writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	if _, err := s.store.CreateUser(r.Context(), req.Username, string(hash)); err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.writeError(w, http.StatusConflict, "username already taken")
			return
		}
		s.log.Error("creating user", "error", err)
		s.writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"message": "registered"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		s.log.Error("looking up user", "error", err)
		s.writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	session, _ := s.sessions.Get(r, sessionName)
	session.Values["userID"] = user.ID
	session.Options.HttpOnly = true
	session.Options.MaxAge = 86400
	if err := session.Save(r, w); err != nil {
		s.log.Error("saving session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "logged in"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessions.Get(r, sessionName)
	session.Values["userID"] = nil
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		s.log.Error("clearing session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// --- Projects ---

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context(), userID(r))
	if err != nil {
		s.log.Error("listing projects", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	s.writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := req.Name
	if name == "" {
		name = defaultProjectName
	}

	id, err := s.store.CreateProject(r.Context(), userID(r), name, req.Body)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.writeError(w, http.StatusConflict, "project name already exists")
			return
		}
		s.log.Error("creating project", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create project")
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"id": id, "name": name})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.projectID(w, r)
	if !ok {
		return
	}
	p, err := s.store.GetProject(r.Context(), userID(r), projectID)
	if err != nil {
		s.storeError(w, err, "failed to load project")
		return
	}
	names, err := s.store.ListImageNames(r.Context(), projectID)
	if err != nil {
		s.log.Error("listing images", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load project images")
		return
	}
	s.writeJSON(w, http.StatusOK, projectDetail{
		ID:         p.ID,
		Name:       p.Name,
		Body:       p.Body,
		ImageNames: names,
	})
}

// handleUpdateProject is the editor's sync endpoint: it stores the new
// name and body and reconciles the image set in one shot, then drops
// stale dimension cache entries so the next render re-measures them.
func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.projectID(w, r)
	if !ok {
		return
	}
	var req updateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := req.Name
	if name == "" {
		name = defaultProjectName
	}

	if err := s.store.UpdateProject(r.Context(), userID(r), projectID, name, req.Body); err != nil {
		s.storeError(w, err, "failed to update project")
		return
	}

	uploads := make([]store.ImageUpload, 0, len(req.Images))
	for _, img := range req.Images {
		up := store.ImageUpload{Name: img.Name}
		if img.BlobBase64 != "" {
			blob, err := base64.StdEncoding.DecodeString(img.BlobBase64)
			if err != nil {
				s.writeError(w, http.StatusBadRequest, "invalid image data for "+img.Name)
				return
			}
			up.Blob = blob
		}
		uploads = append(uploads, up)
	}
	result, err := s.store.SyncImages(r.Context(), projectID, uploads)
	if err != nil {
		s.log.Error("syncing images", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to sync images")
		return
	}

	stale := append(append([]string{}, result.Deleted...), result.Updated...)
	if len(stale) > 0 {
		s.svc.InvalidateImages(projectID, stale...)
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "project updated"})
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.projectID(w, r)
	if !ok {
		return
	}
	names, err := s.store.ListImageNames(r.Context(), projectID)
	if err == nil && len(names) > 0 {
		s.svc.InvalidateImages(projectID, names...)
	}
	if err := s.store.DeleteProject(r.Context(), userID(r), projectID); err != nil {
		s.storeError(w, err, "failed to delete project")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "project deleted"})
}

// --- Images ---

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.projectID(w, r)
	if !ok {
		return
	}
	// Ownership check; the image table itself is keyed by project only.
	if _, err := s.store.GetProject(r.Context(), userID(r), projectID); err != nil {
		s.storeError(w, err, "failed to load project")
		return
	}

	name := chi.URLParam(r, "imageName")
	blob, err := s.store.GetImage(r.Context(), projectID, name)
	if err != nil {
		s.storeError(w, err, "failed to load image")
		return
	}

	w.Header().Set("Content-Type", imageContentType(name))
	w.Header().Set("Content-Length", strconv.Itoa(len(blob)))
	w.Write(blob)
}

func imageContentType(name string) string {
	switch filepath.Ext(name) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".webp":
		return "image/webp"
	}
	return "application/octet-stream"
}

// --- Rendering ---

// handleRender runs a full layout pass over the project's stored body.
// An overlapping render is dropped, not queued; the client retries on
// its next editor tick.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	projectID, ok := s.projectID(w, r)
	if !ok {
		return
	}
	p, err := s.store.GetProject(r.Context(), userID(r), projectID)
	if err != nil {
		s.storeError(w, err, "failed to load project")
		return
	}

	result, err := s.svc.Render(r.Context(), underlog.Input{
		Markup:    p.Body,
		ProjectID: projectID,
		HrefBase:  fmt.Sprintf("/api/projects/%d/image/", projectID),
	})
	if err != nil {
		if errors.Is(err, underlog.ErrRenderInFlight) {
			s.writeError(w, http.StatusTooManyRequests, "render already in progress")
			return
		}
		s.log.Error("rendering project", "project", projectID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "render failed")
		return
	}

	s.writeJSON(w, http.StatusOK, renderResponse{
		SVG:         result.SVG,
		TOC:         result.TOC,
		Diagnostics: result.Document.Diagnostics,
		Pages:       len(result.Pages),
	})
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	var req pdfRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Input == "" {
		s.writeError(w, http.StatusBadRequest, "SVG input is required")
		return
	}

	pdf, err := s.svc.ConvertPDF(r.Context(), req.Input)
	if err != nil {
		if errors.Is(err, underlog.ErrNoPages) {
			s.writeError(w, http.StatusBadRequest, "input contains no pages")
			return
		}
		s.log.Error("converting pdf", "error", err)
		s.writeError(w, http.StatusInternalServerError, "PDF conversion failed")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="underlog.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.Write(pdf)
}

// --- helpers ---

func (s *Server) projectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid project ID")
		return 0, false
	}
	return id, true
}

// storeError maps store sentinels onto HTTP statuses.
func (s *Server) storeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		s.writeError(w, http.StatusConflict, "conflict")
	default:
		s.log.Error(msg, "error", err)
		s.writeError(w, http.StatusInternalServerError, msg)
	}
}
