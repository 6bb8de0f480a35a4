package httpapi

import (
	"net/http"

	"fieldops/pkg/domain"
)

type createFeatureRequest struct {
	Name         string                   `json:"name"`
	FeaNo        string                   `json:"feaNo,omitempty"`
	FeaState     domain.FeatureState      `json:"feaState,omitempty"`
	FeaStatus    string                   `json:"feaStatus,omitempty"`
	FeaType      string                   `json:"feaType"`
	SpecificType string                   `json:"specificType,omitempty"`
	Maintenance  domain.MaintenanceStatus `json:"maintenance,omitempty"`
	Geometry     domain.Geometry          `json:"geometry"`
	BoundaryID   *string                  `json:"boundaryId,omitempty"`
}

func (s *Server) handleCreateFeature(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var req createFeatureRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	feature, err := s.store.CreateFeature(r.Context(), domain.Feature{
		Name:         req.Name,
		FeaNo:        req.FeaNo,
		FeaState:     req.FeaState,
		FeaStatus:    req.FeaStatus,
		FeaType:      req.FeaType,
		SpecificType: req.SpecificType,
		Maintenance:  req.Maintenance,
		Geometry:     req.Geometry,
		BoundaryID:   req.BoundaryID,
		CreatedBy:    id.UserID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, feature)
}

func (s *Server) handleGetFeature(w http.ResponseWriter, r *http.Request) {
	feature, err := s.store.GetFeature(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, feature)
}

func (s *Server) handleUpdateFeature(w http.ResponseWriter, r *http.Request) {
	var req domain.FeatureUpdate
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	feature, err := s.store.UpdateFeature(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, feature)
}

func (s *Server) handleDeleteFeature(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.store.DeleteFeature(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

// handleListFeatures filters by ?type= or ?status=; exactly one is required.
func (s *Server) handleListFeatures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	feaType, feaStatus := q.Get("type"), q.Get("status")
	switch {
	case feaType != "" && feaStatus == "":
		features, err := s.store.ListFeaturesByType(r.Context(), feaType)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, features)
	case feaStatus != "" && feaType == "":
		features, err := s.store.ListFeaturesByStatus(r.Context(), feaStatus)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, features)
	default:
		s.writeError(w, r, &domain.ValidationError{Field: "query", Reason: "exactly one of type or status is required"})
	}
}

func (s *Server) handleSearchFeatures(w http.ResponseWriter, r *http.Request) {
	ext, ok := s.extended(w)
	if !ok {
		return
	}
	features, err := ext.SearchFeatures(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, features)
}

func (s *Server) handleFeatureStats(w http.ResponseWriter, r *http.Request) {
	ext, ok := s.extended(w)
	if !ok {
		return
	}
	stats, err := ext.FeatureStatsByType(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

type createBoundaryRequest struct {
	Name       string          `json:"name"`
	Status     string          `json:"status,omitempty"`
	AssignedTo *string         `json:"assignedTo,omitempty"`
	Geometry   domain.Geometry `json:"geometry"`
}

func (s *Server) handleCreateBoundary(w http.ResponseWriter, r *http.Request) {
	var req createBoundaryRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	boundary, err := s.store.CreateBoundary(r.Context(), domain.Boundary{
		Name:       req.Name,
		Status:     req.Status,
		AssignedTo: req.AssignedTo,
		Geometry:   req.Geometry,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, boundary)
}

func (s *Server) handleGetBoundary(w http.ResponseWriter, r *http.Request) {
	boundary, err := s.store.GetBoundary(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, boundary)
}

type boundaryStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateBoundaryStatus(w http.ResponseWriter, r *http.Request) {
	var req boundaryStatusRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	boundary, err := s.store.UpdateBoundaryStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, boundary)
}

type assignBoundaryRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) handleAssignBoundary(w http.ResponseWriter, r *http.Request) {
	var req assignBoundaryRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	boundary, err := s.store.AssignBoundary(r.Context(), r.PathValue("id"), req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, boundary)
}

func (s *Server) handleFeaturesInBoundary(w http.ResponseWriter, r *http.Request) {
	ext, ok := s.extended(w)
	if !ok {
		return
	}
	features, err := ext.FeaturesInBoundary(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, features)
}

func (s *Server) handleTasksInBoundary(w http.ResponseWriter, r *http.Request) {
	ext, ok := s.extended(w)
	if !ok {
		return
	}
	tasks, err := ext.TasksInBoundary(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tasks)
}
