package memory

import (
	"context"
	"sort"
	"strings"

	"fieldops/pkg/domain"
)

// CreateUser validates input and weak references, assigns identity and
// timestamps, and stores the user. Field users require an Approved team.
func (s *Store) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(user.Username) == "" {
		return domain.User{}, &domain.ValidationError{Field: "username", Reason: "required"}
	}
	if user.PasswordHash == "" {
		return domain.User{}, &domain.ValidationError{Field: "password", Reason: "required"}
	}
	if !user.Role.Valid() {
		return domain.User{}, &domain.ValidationError{Field: "role", Reason: "must be Supervisor or Field"}
	}
	if user.CurrentLocation != nil && user.CurrentLocation.Type() != domain.GeometryPoint {
		return domain.User{}, &domain.ValidationError{Field: "currentLocation", Reason: "must be a point"}
	}
	for _, existing := range s.state.users {
		if strings.EqualFold(existing.Username, user.Username) {
			return domain.User{}, &domain.ValidationError{Field: "username", Reason: "already taken"}
		}
	}
	if err := s.checkUserTeam(user.Role, user.TeamID); err != nil {
		return domain.User{}, err
	}

	now := s.now()
	user.ID = s.newID(func(id string) bool { _, ok := s.state.users[id]; return ok })
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.LastActive.IsZero() {
		user.LastActive = now
	}
	s.state.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

// checkUserTeam enforces the team weak reference: the team must exist, and
// Field users may only join Approved teams. Caller holds the lock.
func (s *Store) checkUserTeam(role domain.Role, teamID *string) error {
	if teamID == nil {
		return nil
	}
	if err := domain.ValidateID(*teamID); err != nil {
		return err
	}
	team, ok := s.state.teams[*teamID]
	if !ok {
		return &domain.ReferentialIntegrityError{Entity: domain.EntityTeam, ID: *teamID, Reason: "team does not exist"}
	}
	if role == domain.RoleField && team.Status != domain.TeamApproved {
		return &domain.ReferentialIntegrityError{Entity: domain.EntityTeam, ID: *teamID, Reason: "team is not approved"}
	}
	return nil
}

// GetUser returns the user, treating a malformed id as absent.
func (s *Store) GetUser(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !domain.IsValidID(id) {
		return domain.User{}, &domain.NotFoundError{Entity: domain.EntityUser, ID: id}
	}
	u, ok := s.state.users[id]
	if !ok {
		return domain.User{}, &domain.NotFoundError{Entity: domain.EntityUser, ID: id}
	}
	return cloneUser(u), nil
}

// GetUserByUsername matches case-insensitively.
func (s *Store) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.state.users {
		if strings.EqualFold(u.Username, username) {
			return cloneUser(u), nil
		}
	}
	return domain.User{}, &domain.NotFoundError{Entity: domain.EntityUser, ID: username}
}

// UpdateUserLocation replaces the user's current location with a point.
func (s *Store) UpdateUserLocation(_ context.Context, id string, location domain.Geometry) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := domain.ValidateID(id); err != nil {
		return domain.User{}, err
	}
	if location.Type() != domain.GeometryPoint {
		return domain.User{}, &domain.ValidationError{Field: "location", Reason: "must be a point"}
	}
	u, ok := s.state.users[id]
	if !ok {
		return domain.User{}, &domain.NotFoundError{Entity: domain.EntityUser, ID: id}
	}
	loc := location.Clone()
	u.CurrentLocation = &loc
	u.UpdatedAt = s.now()
	s.state.users[id] = u
	return cloneUser(u), nil
}

// UpdateUserLastActive stamps the user's last-activity time.
func (s *Store) UpdateUserLastActive(_ context.Context, id string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := domain.ValidateID(id); err != nil {
		return domain.User{}, err
	}
	u, ok := s.state.users[id]
	if !ok {
		return domain.User{}, &domain.NotFoundError{Entity: domain.EntityUser, ID: id}
	}
	now := s.now()
	u.LastActive = now
	u.UpdatedAt = now
	s.state.users[id] = u
	return cloneUser(u), nil
}

// ListFieldUsers returns every user with the Field role, ordered by id.
func (s *Store) ListFieldUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0)
	for _, u := range s.state.users {
		if u.Role == domain.RoleField {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateTeam stores a new team, defaulting status to Pending.
func (s *Store) CreateTeam(_ context.Context, team domain.Team) (domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(team.Name) == "" {
		return domain.Team{}, &domain.ValidationError{Field: "name", Reason: "required"}
	}
	if team.Status == "" {
		team.Status = domain.TeamPending
	}
	if !team.Status.Valid() {
		return domain.Team{}, &domain.ValidationError{Field: "status", Reason: "invalid team status"}
	}
	if err := domain.ValidateID(team.CreatedBy); err != nil {
		return domain.Team{}, err
	}
	if _, ok := s.state.users[team.CreatedBy]; !ok {
		return domain.Team{}, &domain.ReferentialIntegrityError{Entity: domain.EntityUser, ID: team.CreatedBy, Reason: "creator does not exist"}
	}

	now := s.now()
	team.ID = s.newID(func(id string) bool { _, ok := s.state.teams[id]; return ok })
	team.CreatedAt = now
	team.UpdatedAt = now
	s.state.teams[team.ID] = cloneTeam(team)
	return cloneTeam(team), nil
}

// GetTeam returns the team, treating a malformed id as absent.
func (s *Store) GetTeam(_ context.Context, id string) (domain.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !domain.IsValidID(id) {
		return domain.Team{}, &domain.NotFoundError{Entity: domain.EntityTeam, ID: id}
	}
	t, ok := s.state.teams[id]
	if !ok {
		return domain.Team{}, &domain.NotFoundError{Entity: domain.EntityTeam, ID: id}
	}
	return cloneTeam(t), nil
}

// UpdateTeamStatus moves the team through its approval workflow; approving
// with an approver id records who approved.
func (s *Store) UpdateTeamStatus(_ context.Context, id string, status domain.TeamStatus, approvedBy *string) (domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := domain.ValidateID(id); err != nil {
		return domain.Team{}, err
	}
	if !status.Valid() {
		return domain.Team{}, &domain.ValidationError{Field: "status", Reason: "invalid team status"}
	}
	t, ok := s.state.teams[id]
	if !ok {
		return domain.Team{}, &domain.NotFoundError{Entity: domain.EntityTeam, ID: id}
	}
	if approvedBy != nil {
		if err := domain.ValidateID(*approvedBy); err != nil {
			return domain.Team{}, err
		}
	}
	t.Status = status
	if status == domain.TeamApproved && approvedBy != nil {
		t.ApprovedBy = cloneStrPtr(approvedBy)
	}
	t.UpdatedAt = s.now()
	s.state.teams[id] = t
	return cloneTeam(t), nil
}

// ListTeams returns every team ordered by id.
func (s *Store) ListTeams(_ context.Context) ([]domain.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Team, 0, len(s.state.teams))
	for _, t := range s.state.teams {
		out = append(out, cloneTeam(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListUsersByTeam returns the members of a team; a malformed or unknown team
// id simply matches no one.
func (s *Store) ListUsersByTeam(_ context.Context, teamID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0)
	for _, u := range s.state.users {
		if u.TeamID != nil && *u.TeamID == teamID {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AssignUserToTeam moves a user onto a team, enforcing the same approval
// rule as registration.
func (s *Store) AssignUserToTeam(_ context.Context, userID, teamID string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := domain.ValidateID(userID); err != nil {
		return domain.User{}, err
	}
	u, ok := s.state.users[userID]
	if !ok {
		return domain.User{}, &domain.NotFoundError{Entity: domain.EntityUser, ID: userID}
	}
	if err := s.checkUserTeam(u.Role, &teamID); err != nil {
		return domain.User{}, err
	}
	u.TeamID = strPtr(teamID)
	u.UpdatedAt = s.now()
	s.state.users[userID] = u
	return cloneUser(u), nil
}
