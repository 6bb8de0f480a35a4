package httpapi

import (
	"net/http"

	"fieldops/internal/infra/blob"
	"fieldops/pkg/domain"
)

type createTaskRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Priority    domain.TaskPriority `json:"priority,omitempty"`
	AssignedTo  *string             `json:"assignedTo,omitempty"`
	Location    *domain.Geometry    `json:"location,omitempty"`
	BoundaryID  *string             `json:"boundaryId,omitempty"`
	FeatureID   *string             `json:"featureId,omitempty"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var req createTaskRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	task, err := s.store.CreateTask(r.Context(), domain.Task{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		CreatedBy:   id.UserID,
		AssignedTo:  req.AssignedTo,
		Location:    req.Location,
		BoundaryID:  req.BoundaryID,
		FeatureID:   req.FeatureID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasks(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tasks)
}

type taskStatusRequest struct {
	Status domain.TaskStatus `json:"status"`
}

// handleUpdateTaskStatus records the transition under the calling user; the
// store emits the audit record.
func (s *Server) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var req taskStatusRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	task, err := s.store.UpdateTaskStatus(r.Context(), r.PathValue("id"), req.Status, id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

type assignTaskRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) handleAssignTask(w http.ResponseWriter, r *http.Request) {
	var req assignTaskRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	task, err := s.store.AssignTask(r.Context(), r.PathValue("id"), req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleListTasksByAssignee(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasksByAssignee(r.Context(), r.PathValue("userId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleListTasksByCreator(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasksByCreator(r.Context(), r.PathValue("userId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleSearchTasks(w http.ResponseWriter, r *http.Request) {
	ext, ok := s.extended(w)
	if !ok {
		return
	}
	tasks, err := ext.SearchTasks(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleTaskStats(w http.ResponseWriter, r *http.Request) {
	ext, ok := s.extended(w)
	if !ok {
		return
	}
	stats, err := ext.TaskStatsByUser(r.Context(), r.PathValue("userId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

type bulkStatusRequest struct {
	IDs    []string          `json:"ids"`
	Status domain.TaskStatus `json:"status"`
}

type bulkStatusResponse struct {
	Updated int `json:"updated"`
}

func (s *Server) handleBulkUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	ext, ok := s.extended(w)
	if !ok {
		return
	}
	var req bulkStatusRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := ext.BulkUpdateTaskStatus(r.Context(), req.IDs, req.Status, id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bulkStatusResponse{Updated: n})
}

type createTaskUpdateRequest struct {
	OldStatus domain.TaskStatus `json:"oldStatus"`
	NewStatus domain.TaskStatus `json:"newStatus"`
	Comment   string            `json:"comment,omitempty"`
}

func (s *Server) handleCreateTaskUpdate(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var req createTaskUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	update, err := s.store.CreateTaskUpdate(r.Context(), domain.TaskUpdate{
		TaskID:    r.PathValue("id"),
		UserID:    id.UserID,
		OldStatus: req.OldStatus,
		NewStatus: req.NewStatus,
		Comment:   req.Comment,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, update)
}

func (s *Server) handleListTaskUpdates(w http.ResponseWriter, r *http.Request) {
	updates, err := s.store.ListTaskUpdates(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updates)
}

const maxEvidenceBytes = 16 << 20

// handleUploadEvidence accepts a multipart form with a "photo" file and an
// optional "description" field, stores the image, and records the evidence
// with the stored object's URL.
func (s *Server) handleUploadEvidence(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	taskID := r.PathValue("id")
	if err := r.ParseMultipartForm(maxEvidenceBytes); err != nil {
		s.writeError(w, r, &domain.ValidationError{Field: "body", Reason: "invalid multipart form"})
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		s.writeError(w, r, &domain.ValidationError{Field: "photo", Reason: "required"})
		return
	}
	defer func() { _ = file.Close() }()

	// Reject early so we never store an orphaned image for a missing task.
	if _, err := s.store.GetTask(r.Context(), taskID); err != nil {
		s.writeError(w, r, err)
		return
	}

	key := blob.EvidenceKey(taskID, header.Filename)
	info, err := s.photos.Put(r.Context(), key, file, header.Header.Get("Content-Type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	evidence, err := s.store.AddTaskEvidence(r.Context(), domain.TaskEvidence{
		TaskID:      taskID,
		UserID:      id.UserID,
		ImageURL:    info.URL,
		Description: r.FormValue("description"),
	})
	if err != nil {
		// The record failed; drop the stored image rather than leak it.
		_, _ = s.photos.Delete(r.Context(), key)
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, evidence)
}

func (s *Server) handleListTaskEvidence(w http.ResponseWriter, r *http.Request) {
	evidence, err := s.store.ListTaskEvidence(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, evidence)
}
