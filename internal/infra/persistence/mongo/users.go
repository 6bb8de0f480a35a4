package mongo

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fieldops/pkg/domain"
)

// CreateUser validates input and weak references, assigns identity and
// timestamps, and inserts the user. The unique username index (collation
// strength 2) backstops the pre-insert uniqueness check.
func (s *Store) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
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
	taken, err := s.usernameTaken(ctx, user.Username)
	if err != nil {
		return domain.User{}, err
	}
	if taken {
		return domain.User{}, &domain.ValidationError{Field: "username", Reason: "already taken"}
	}
	if err := s.checkUserTeam(ctx, user.Role, user.TeamID); err != nil {
		return domain.User{}, err
	}

	now := s.now()
	user.ID = s.idFn()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.LastActive.IsZero() {
		user.LastActive = now
	}
	if err := s.insert(ctx, colUsers, &user, func(id string) { user.ID = id }); err != nil {
		var perr *domain.PersistenceError
		if errors.As(err, &perr) && mongo.IsDuplicateKeyError(perr.Err) {
			return domain.User{}, &domain.ValidationError{Field: "username", Reason: "already taken"}
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *Store) usernameTaken(ctx context.Context, username string) (bool, error) {
	opts := options.Count().SetLimit(1).SetCollation(caseInsensitive)
	n, err := s.col(colUsers).CountDocuments(ctx, bson.M{"username": username}, opts)
	if err != nil {
		return false, &domain.PersistenceError{Op: "count users", Err: err}
	}
	return n > 0, nil
}

// checkUserTeam enforces the team weak reference: the team must exist, and
// Field users may only join Approved teams.
func (s *Store) checkUserTeam(ctx context.Context, role domain.Role, teamID *string) error {
	if teamID == nil {
		return nil
	}
	if err := domain.ValidateID(*teamID); err != nil {
		return err
	}
	var team domain.Team
	err := s.col(colTeams).FindOne(ctx, bson.M{"_id": *teamID}).Decode(&team)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &domain.ReferentialIntegrityError{Entity: domain.EntityTeam, ID: *teamID, Reason: "team does not exist"}
	}
	if err != nil {
		return &domain.PersistenceError{Op: "get teams", Err: err}
	}
	if role == domain.RoleField && team.Status != domain.TeamApproved {
		return &domain.ReferentialIntegrityError{Entity: domain.EntityTeam, ID: *teamID, Reason: "team is not approved"}
	}
	return nil
}

// GetUser returns the user, treating a malformed id as absent.
func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	return getByID[domain.User](ctx, s, colUsers, domain.EntityUser, id)
}

// GetUserByUsername matches case-insensitively via the index collation.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	opts := options.FindOne().SetCollation(caseInsensitive)
	var u domain.User
	err := s.col(colUsers).FindOne(ctx, bson.M{"username": username}, opts).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.User{}, &domain.NotFoundError{Entity: domain.EntityUser, ID: username}
	}
	if err != nil {
		return domain.User{}, &domain.PersistenceError{Op: "get users", Err: err}
	}
	return u, nil
}

// UpdateUserLocation replaces the user's current location with a point.
func (s *Store) UpdateUserLocation(ctx context.Context, id string, location domain.Geometry) (domain.User, error) {
	if err := domain.ValidateID(id); err != nil {
		return domain.User{}, err
	}
	if location.Type() != domain.GeometryPoint {
		return domain.User{}, &domain.ValidationError{Field: "location", Reason: "must be a point"}
	}
	return updateOne[domain.User](ctx, s, colUsers, domain.EntityUser, id, bson.M{
		"currentLocation": location,
		"updatedAt":       s.now(),
	})
}

// UpdateUserLastActive stamps the user's last-activity time.
func (s *Store) UpdateUserLastActive(ctx context.Context, id string) (domain.User, error) {
	now := s.now()
	return updateOne[domain.User](ctx, s, colUsers, domain.EntityUser, id, bson.M{
		"lastActive": now,
		"updatedAt":  now,
	})
}

// ListFieldUsers returns every user with the Field role, ordered by id.
func (s *Store) ListFieldUsers(ctx context.Context) ([]domain.User, error) {
	return findAll[domain.User](ctx, s, colUsers, bson.M{"role": domain.RoleField})
}

// CreateTeam inserts a new team, defaulting status to Pending.
func (s *Store) CreateTeam(ctx context.Context, team domain.Team) (domain.Team, error) {
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
	ok, err := s.exists(ctx, colUsers, team.CreatedBy)
	if err != nil {
		return domain.Team{}, err
	}
	if !ok {
		return domain.Team{}, &domain.ReferentialIntegrityError{Entity: domain.EntityUser, ID: team.CreatedBy, Reason: "creator does not exist"}
	}

	now := s.now()
	team.ID = s.idFn()
	team.CreatedAt = now
	team.UpdatedAt = now
	if err := s.insert(ctx, colTeams, &team, func(id string) { team.ID = id }); err != nil {
		return domain.Team{}, err
	}
	return team, nil
}

// GetTeam returns the team, treating a malformed id as absent.
func (s *Store) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	return getByID[domain.Team](ctx, s, colTeams, domain.EntityTeam, id)
}

// UpdateTeamStatus moves the team through its approval workflow; approving
// with an approver id records who approved.
func (s *Store) UpdateTeamStatus(ctx context.Context, id string, status domain.TeamStatus, approvedBy *string) (domain.Team, error) {
	if !status.Valid() {
		return domain.Team{}, &domain.ValidationError{Field: "status", Reason: "invalid team status"}
	}
	if approvedBy != nil {
		if err := domain.ValidateID(*approvedBy); err != nil {
			return domain.Team{}, err
		}
	}
	set := bson.M{"status": status, "updatedAt": s.now()}
	if status == domain.TeamApproved && approvedBy != nil {
		set["approvedBy"] = *approvedBy
	}
	return updateOne[domain.Team](ctx, s, colTeams, domain.EntityTeam, id, set)
}

// ListTeams returns every team ordered by id.
func (s *Store) ListTeams(ctx context.Context) ([]domain.Team, error) {
	return findAll[domain.Team](ctx, s, colTeams, bson.M{})
}

// ListUsersByTeam returns the members of a team; a malformed or unknown team
// id simply matches no one.
func (s *Store) ListUsersByTeam(ctx context.Context, teamID string) ([]domain.User, error) {
	return findAll[domain.User](ctx, s, colUsers, bson.M{"teamId": teamID})
}

// AssignUserToTeam moves a user onto a team, enforcing the same approval
// rule as registration.
func (s *Store) AssignUserToTeam(ctx context.Context, userID, teamID string) (domain.User, error) {
	if err := domain.ValidateID(userID); err != nil {
		return domain.User{}, err
	}
	u, err := getByID[domain.User](ctx, s, colUsers, domain.EntityUser, userID)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.checkUserTeam(ctx, u.Role, &teamID); err != nil {
		return domain.User{}, err
	}
	return updateOne[domain.User](ctx, s, colUsers, domain.EntityUser, userID, bson.M{
		"teamId":    teamID,
		"updatedAt": s.now(),
	})
}
