package file

import (
	"context"

	"fieldops/pkg/domain"
)

// Mutating operations persist the collections they touch; reads delegate to
// the embedded memory store directly.

func (s *Store) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	return mutate(s, "create user", []collection{colUsers}, func() (domain.User, error) {
		return s.mem.CreateUser(ctx, user)
	})
}

func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.mem.GetUser(ctx, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return s.mem.GetUserByUsername(ctx, username)
}

func (s *Store) UpdateUserLocation(ctx context.Context, id string, location domain.Geometry) (domain.User, error) {
	return mutate(s, "update user location", []collection{colUsers}, func() (domain.User, error) {
		return s.mem.UpdateUserLocation(ctx, id, location)
	})
}

func (s *Store) UpdateUserLastActive(ctx context.Context, id string) (domain.User, error) {
	return mutate(s, "update user last active", []collection{colUsers}, func() (domain.User, error) {
		return s.mem.UpdateUserLastActive(ctx, id)
	})
}

func (s *Store) ListFieldUsers(ctx context.Context) ([]domain.User, error) {
	return s.mem.ListFieldUsers(ctx)
}

func (s *Store) CreateTeam(ctx context.Context, team domain.Team) (domain.Team, error) {
	return mutate(s, "create team", []collection{colTeams}, func() (domain.Team, error) {
		return s.mem.CreateTeam(ctx, team)
	})
}

func (s *Store) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	return s.mem.GetTeam(ctx, id)
}

func (s *Store) UpdateTeamStatus(ctx context.Context, id string, status domain.TeamStatus, approvedBy *string) (domain.Team, error) {
	return mutate(s, "update team status", []collection{colTeams}, func() (domain.Team, error) {
		return s.mem.UpdateTeamStatus(ctx, id, status, approvedBy)
	})
}

func (s *Store) ListTeams(ctx context.Context) ([]domain.Team, error) {
	return s.mem.ListTeams(ctx)
}

func (s *Store) ListUsersByTeam(ctx context.Context, teamID string) ([]domain.User, error) {
	return s.mem.ListUsersByTeam(ctx, teamID)
}

func (s *Store) AssignUserToTeam(ctx context.Context, userID, teamID string) (domain.User, error) {
	return mutate(s, "assign user to team", []collection{colUsers}, func() (domain.User, error) {
		return s.mem.AssignUserToTeam(ctx, userID, teamID)
	})
}

func (s *Store) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	return mutate(s, "create task", []collection{colTasks}, func() (domain.Task, error) {
		return s.mem.CreateTask(ctx, task)
	})
}

func (s *Store) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return s.mem.GetTask(ctx, id)
}

// UpdateTaskStatus persists the task and its audit record together; a failed
// write rolls both back so status and audit trail never diverge.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status domain.TaskStatus, userID string) (domain.Task, error) {
	return mutate(s, "update task status", []collection{colTasks, colUpdates}, func() (domain.Task, error) {
		return s.mem.UpdateTaskStatus(ctx, id, status, userID)
	})
}

func (s *Store) AssignTask(ctx context.Context, id, userID string) (domain.Task, error) {
	return mutate(s, "assign task", []collection{colTasks}, func() (domain.Task, error) {
		return s.mem.AssignTask(ctx, id, userID)
	})
}

func (s *Store) ListTasksByAssignee(ctx context.Context, userID string) ([]domain.Task, error) {
	return s.mem.ListTasksByAssignee(ctx, userID)
}

func (s *Store) ListTasksByCreator(ctx context.Context, userID string) ([]domain.Task, error) {
	return s.mem.ListTasksByCreator(ctx, userID)
}

func (s *Store) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return s.mem.ListTasks(ctx)
}

func (s *Store) CreateFeature(ctx context.Context, feature domain.Feature) (domain.Feature, error) {
	return mutate(s, "create feature", []collection{colFeatures}, func() (domain.Feature, error) {
		return s.mem.CreateFeature(ctx, feature)
	})
}

func (s *Store) GetFeature(ctx context.Context, id string) (domain.Feature, error) {
	return s.mem.GetFeature(ctx, id)
}

func (s *Store) UpdateFeature(ctx context.Context, id string, update domain.FeatureUpdate) (domain.Feature, error) {
	return mutate(s, "update feature", []collection{colFeatures}, func() (domain.Feature, error) {
		return s.mem.UpdateFeature(ctx, id, update)
	})
}

func (s *Store) DeleteFeature(ctx context.Context, id string) (bool, error) {
	return mutate(s, "delete feature", []collection{colFeatures}, func() (bool, error) {
		return s.mem.DeleteFeature(ctx, id)
	})
}

func (s *Store) ListFeaturesByType(ctx context.Context, feaType string) ([]domain.Feature, error) {
	return s.mem.ListFeaturesByType(ctx, feaType)
}

func (s *Store) ListFeaturesByStatus(ctx context.Context, feaStatus string) ([]domain.Feature, error) {
	return s.mem.ListFeaturesByStatus(ctx, feaStatus)
}

func (s *Store) CreateBoundary(ctx context.Context, boundary domain.Boundary) (domain.Boundary, error) {
	return mutate(s, "create boundary", []collection{colBoundaries}, func() (domain.Boundary, error) {
		return s.mem.CreateBoundary(ctx, boundary)
	})
}

func (s *Store) GetBoundary(ctx context.Context, id string) (domain.Boundary, error) {
	return s.mem.GetBoundary(ctx, id)
}

func (s *Store) UpdateBoundaryStatus(ctx context.Context, id, status string) (domain.Boundary, error) {
	return mutate(s, "update boundary status", []collection{colBoundaries}, func() (domain.Boundary, error) {
		return s.mem.UpdateBoundaryStatus(ctx, id, status)
	})
}

func (s *Store) AssignBoundary(ctx context.Context, id, userID string) (domain.Boundary, error) {
	return mutate(s, "assign boundary", []collection{colBoundaries}, func() (domain.Boundary, error) {
		return s.mem.AssignBoundary(ctx, id, userID)
	})
}

func (s *Store) CreateTaskUpdate(ctx context.Context, update domain.TaskUpdate) (domain.TaskUpdate, error) {
	return mutate(s, "create task update", []collection{colUpdates}, func() (domain.TaskUpdate, error) {
		return s.mem.CreateTaskUpdate(ctx, update)
	})
}

func (s *Store) ListTaskUpdates(ctx context.Context, taskID string) ([]domain.TaskUpdate, error) {
	return s.mem.ListTaskUpdates(ctx, taskID)
}

func (s *Store) AddTaskEvidence(ctx context.Context, evidence domain.TaskEvidence) (domain.TaskEvidence, error) {
	return mutate(s, "add task evidence", []collection{colEvidence}, func() (domain.TaskEvidence, error) {
		return s.mem.AddTaskEvidence(ctx, evidence)
	})
}

func (s *Store) ListTaskEvidence(ctx context.Context, taskID string) ([]domain.TaskEvidence, error) {
	return s.mem.ListTaskEvidence(ctx, taskID)
}

func (s *Store) UsersNearLocation(ctx context.Context, lng, lat, maxDistanceMeters float64) ([]domain.User, error) {
	return s.mem.UsersNearLocation(ctx, lng, lat, maxDistanceMeters)
}

func (s *Store) FeaturesInBoundary(ctx context.Context, boundaryID string) ([]domain.Feature, error) {
	return s.mem.FeaturesInBoundary(ctx, boundaryID)
}

func (s *Store) TasksInBoundary(ctx context.Context, boundaryID string) ([]domain.Task, error) {
	return s.mem.TasksInBoundary(ctx, boundaryID)
}

func (s *Store) TaskStatsByUser(ctx context.Context, userID string) (domain.TaskStats, error) {
	return s.mem.TaskStatsByUser(ctx, userID)
}

func (s *Store) FeatureStatsByType(ctx context.Context) ([]domain.FeatureTypeCount, error) {
	return s.mem.FeatureStatsByType(ctx)
}

func (s *Store) SearchFeatures(ctx context.Context, query string) ([]domain.Feature, error) {
	return s.mem.SearchFeatures(ctx, query)
}

func (s *Store) SearchTasks(ctx context.Context, query string) ([]domain.Task, error) {
	return s.mem.SearchTasks(ctx, query)
}

func (s *Store) BulkUpdateTaskStatus(ctx context.Context, ids []string, status domain.TaskStatus, userID string) (int, error) {
	return mutate(s, "bulk update task status", []collection{colTasks, colUpdates}, func() (int, error) {
		return s.mem.BulkUpdateTaskStatus(ctx, ids, status, userID)
	})
}
