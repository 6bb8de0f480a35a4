package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"fieldops/pkg/domain"
)

type ctxKey int

const identityKey ctxKey = iota

// identity is the authenticated caller extracted from the bearer token.
type identity struct {
	UserID string
	Role   domain.Role
}

func identityFrom(ctx context.Context) (identity, bool) {
	id, ok := ctx.Value(identityKey).(identity)
	return id, ok
}

const tokenTTL = 24 * time.Hour

func (s *Server) issueToken(u domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  u.ID,
		"role": string(u.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func (s *Server) parseToken(raw string) (identity, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !tok.Valid {
		return identity{}, fmt.Errorf("invalid token")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return identity{}, fmt.Errorf("invalid claims")
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if !domain.IsValidID(sub) || !domain.Role(role).Valid() {
		return identity{}, fmt.Errorf("invalid claims")
	}
	return identity{UserID: sub, Role: domain.Role(role)}, nil
}

// requireUser authenticates the bearer token and stashes the caller identity
// on the request context.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			s.writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
			return
		}
		id, err := s.parseToken(raw)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			s.writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token"})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	}
}

// requireSupervisor restricts the handler to supervisor callers.
func (s *Server) requireSupervisor(next http.HandlerFunc) http.HandlerFunc {
	return s.requireUser(func(w http.ResponseWriter, r *http.Request) {
		id, _ := identityFrom(r.Context())
		if id.Role != domain.RoleSupervisor {
			s.writeJSON(w, http.StatusForbidden, errorBody{Error: "supervisor role required"})
			return
		}
		next(w, r)
	})
}

type registerRequest struct {
	Username string           `json:"username"`
	Password string           `json:"password"`
	Role     domain.Role      `json:"role"`
	TeamID   *string          `json:"teamId,omitempty"`
	Location *domain.Geometry `json:"currentLocation,omitempty"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.Password) < 8 {
		s.writeError(w, r, &domain.ValidationError{Field: "password", Reason: "must be at least 8 characters"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.store.CreateUser(r.Context(), domain.User{
		Username:        req.Username,
		PasswordHash:    string(hash),
		Role:            req.Role,
		TeamID:          req.TeamID,
		CurrentLocation: req.Location,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	token, err := s.issueToken(user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, authResponse{Token: token, User: viewUser(user)})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		// Same response for unknown user and wrong password.
		s.writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
		return
	}
	if updated, err := s.store.UpdateUserLastActive(r.Context(), user.ID); err == nil {
		user = updated
	}
	token, err := s.issueToken(user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, authResponse{Token: token, User: viewUser(user)})
}
