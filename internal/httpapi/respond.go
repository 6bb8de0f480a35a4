package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"fieldops/pkg/domain"
)

const maxBodyBytes = 1 << 20 // request body cap for JSON endpoints

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", zap.Error(err))
	}
}

// writeError translates the domain error taxonomy to HTTP statuses:
// validation 400, broken weak reference 422, absent entity 404, everything
// else 500 with the detail kept out of the response body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsValidation(err):
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case domain.IsReferentialIntegrity(err):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	case domain.IsNotFound(err):
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	default:
		s.log.Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// decodeBody reads a JSON request body into v, rejecting trailing garbage.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &domain.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	if dec.More() {
		return &domain.ValidationError{Field: "body", Reason: "unexpected trailing data"}
	}
	return nil
}

// userView is the wire shape of a user; the password hash never leaves the
// process.
type userView struct {
	ID              string           `json:"id"`
	Username        string           `json:"username"`
	Role            domain.Role      `json:"role"`
	TeamID          *string          `json:"teamId,omitempty"`
	LastActive      string           `json:"lastActive"`
	CurrentLocation *domain.Geometry `json:"currentLocation,omitempty"`
	CreatedAt       string           `json:"createdAt"`
	UpdatedAt       string           `json:"updatedAt"`
}

func viewUser(u domain.User) userView {
	return userView{
		ID:              u.ID,
		Username:        u.Username,
		Role:            u.Role,
		TeamID:          u.TeamID,
		LastActive:      u.LastActive.UTC().Format(timeLayout),
		CurrentLocation: u.CurrentLocation,
		CreatedAt:       u.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:       u.UpdatedAt.UTC().Format(timeLayout),
	}
}

func viewUsers(users []domain.User) []userView {
	out := make([]userView, len(users))
	for i, u := range users {
		out[i] = viewUser(u)
	}
	return out
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

var errUnsupportedCapability = errors.New("backend does not support this operation")

// extended resolves the optional capability tier, reporting 501 when the
// active backend lacks it.
func (s *Server) extended(w http.ResponseWriter) (domain.ExtendedStore, bool) {
	ext, ok := domain.AsExtended(s.store)
	if !ok {
		s.writeJSON(w, http.StatusNotImplemented, errorBody{Error: errUnsupportedCapability.Error()})
		return nil, false
	}
	return ext, true
}
