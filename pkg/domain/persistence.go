package domain

import "context"

// Driver identifies a concrete storage backend.
type Driver string

// Supported storage drivers, in fallback order.
const (
	DriverMongo  Driver = "mongo"  // managed document database
	DriverFile   Driver = "file"   // per-collection JSON snapshots on disk
	DriverMemory Driver = "memory" // volatile maps (tests / last-resort)
)

// Store is the mandatory storage contract implemented by every backend.
//
// Behavioural parity rules shared by all implementations:
//   - Get* treats a malformed id exactly like an absent one: NotFoundError.
//   - Mutations referencing a malformed id fail fast with ValidationError.
//   - Every returned entity is a value copy; callers never alias store state.
//   - UpdateTaskStatus appends exactly one TaskUpdate whose OldStatus is the
//     value immediately prior to the write; the status write and the audit
//     append succeed or fail together.
//   - AssignTask forces Status to Assigned regardless of the prior status.
//   - Every mutation refreshes UpdatedAt.
type Store interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	UpdateUserLocation(ctx context.Context, id string, location Geometry) (User, error)
	UpdateUserLastActive(ctx context.Context, id string) (User, error)
	ListFieldUsers(ctx context.Context) ([]User, error)

	CreateTeam(ctx context.Context, team Team) (Team, error)
	GetTeam(ctx context.Context, id string) (Team, error)
	UpdateTeamStatus(ctx context.Context, id string, status TeamStatus, approvedBy *string) (Team, error)
	ListTeams(ctx context.Context) ([]Team, error)
	ListUsersByTeam(ctx context.Context, teamID string) ([]User, error)
	AssignUserToTeam(ctx context.Context, userID, teamID string) (User, error)

	CreateTask(ctx context.Context, task Task) (Task, error)
	GetTask(ctx context.Context, id string) (Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status TaskStatus, userID string) (Task, error)
	AssignTask(ctx context.Context, id, userID string) (Task, error)
	ListTasksByAssignee(ctx context.Context, userID string) ([]Task, error)
	ListTasksByCreator(ctx context.Context, userID string) ([]Task, error)
	ListTasks(ctx context.Context) ([]Task, error)

	CreateFeature(ctx context.Context, feature Feature) (Feature, error)
	GetFeature(ctx context.Context, id string) (Feature, error)
	UpdateFeature(ctx context.Context, id string, update FeatureUpdate) (Feature, error)
	DeleteFeature(ctx context.Context, id string) (bool, error)
	ListFeaturesByType(ctx context.Context, feaType string) ([]Feature, error)
	ListFeaturesByStatus(ctx context.Context, feaStatus string) ([]Feature, error)

	CreateBoundary(ctx context.Context, boundary Boundary) (Boundary, error)
	GetBoundary(ctx context.Context, id string) (Boundary, error)
	UpdateBoundaryStatus(ctx context.Context, id, status string) (Boundary, error)
	AssignBoundary(ctx context.Context, id, userID string) (Boundary, error)

	CreateTaskUpdate(ctx context.Context, update TaskUpdate) (TaskUpdate, error)
	ListTaskUpdates(ctx context.Context, taskID string) ([]TaskUpdate, error)
	AddTaskEvidence(ctx context.Context, evidence TaskEvidence) (TaskEvidence, error)
	ListTaskEvidence(ctx context.Context, taskID string) ([]TaskEvidence, error)

	Driver() Driver
	Close(ctx context.Context) error
}

// ExtendedStore is the optional capability tier: geospatial queries, text
// search, aggregate statistics, and bulk mutation. Callers discover it with
// AsExtended; probing any other way is unsupported.
type ExtendedStore interface {
	Store

	// UsersNearLocation returns users whose current location lies within
	// maxDistance meters (inclusive) of the given point, nearest first.
	UsersNearLocation(ctx context.Context, lng, lat, maxDistanceMeters float64) ([]User, error)
	// FeaturesInBoundary returns features whose geometry lies entirely
	// within the boundary polygon.
	FeaturesInBoundary(ctx context.Context, boundaryID string) ([]Feature, error)
	// TasksInBoundary returns tasks whose location lies within the boundary
	// polygon.
	TasksInBoundary(ctx context.Context, boundaryID string) ([]Task, error)
	TaskStatsByUser(ctx context.Context, userID string) (TaskStats, error)
	FeatureStatsByType(ctx context.Context) ([]FeatureTypeCount, error)
	SearchFeatures(ctx context.Context, query string) ([]Feature, error)
	SearchTasks(ctx context.Context, query string) ([]Task, error)
	// BulkUpdateTaskStatus validates every id before mutating anything,
	// then updates each existing task independently (skipping absent ids),
	// emitting one audit record per mutated task. Returns the number of
	// tasks actually mutated.
	BulkUpdateTaskStatus(ctx context.Context, ids []string, status TaskStatus, userID string) (int, error)
}

// AsExtended reports whether the store exposes the optional capability tier.
func AsExtended(s Store) (ExtendedStore, bool) {
	e, ok := s.(ExtendedStore)
	return e, ok
}
