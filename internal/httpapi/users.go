package httpapi

import (
	"net/http"
	"strconv"

	"fieldops/pkg/domain"
)

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewUser(user))
}

func (s *Server) handleListFieldUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListFieldUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewUsers(users))
}

type locationRequest struct {
	Location domain.Geometry `json:"location"`
}

func (s *Server) handleUpdateUserLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.store.UpdateUserLocation(r.Context(), r.PathValue("id"), req.Location)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewUser(user))
}

func (s *Server) handleUpdateUserLastActive(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.UpdateUserLastActive(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewUser(user))
}

// handleUsersNear answers ?lng=&lat=&maxDistance= (meters) with the nearest
// users first.
func (s *Server) handleUsersNear(w http.ResponseWriter, r *http.Request) {
	ext, ok := s.extended(w)
	if !ok {
		return
	}
	q := r.URL.Query()
	lng, err1 := strconv.ParseFloat(q.Get("lng"), 64)
	lat, err2 := strconv.ParseFloat(q.Get("lat"), 64)
	maxDist, err3 := strconv.ParseFloat(q.Get("maxDistance"), 64)
	if err1 != nil || err2 != nil || err3 != nil {
		s.writeError(w, r, &domain.ValidationError{Field: "query", Reason: "lng, lat, and maxDistance must be numbers"})
		return
	}
	users, err := ext.UsersNearLocation(r.Context(), lng, lat, maxDist)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewUsers(users))
}

type createTeamRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var req createTeamRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	team, err := s.store.CreateTeam(r.Context(), domain.Team{Name: req.Name, CreatedBy: id.UserID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, team)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := s.store.GetTeam(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, team)
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := s.store.ListTeams(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, teams)
}

type teamStatusRequest struct {
	Status domain.TeamStatus `json:"status"`
}

// handleUpdateTeamStatus moves a team through its approval workflow; the
// acting supervisor is recorded as approver on approval.
func (s *Server) handleUpdateTeamStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	var req teamStatusRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	var approvedBy *string
	if req.Status == domain.TeamApproved {
		approvedBy = &id.UserID
	}
	team, err := s.store.UpdateTeamStatus(r.Context(), r.PathValue("id"), req.Status, approvedBy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, team)
}

func (s *Server) handleListTeamMembers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsersByTeam(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewUsers(users))
}

type assignTeamRequest struct {
	TeamID string `json:"teamId"`
}

func (s *Server) handleAssignUserToTeam(w http.ResponseWriter, r *http.Request) {
	var req assignTeamRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.store.AssignUserToTeam(r.Context(), r.PathValue("id"), req.TeamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewUser(user))
}
