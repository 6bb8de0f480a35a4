// Package domain defines the persistent entities, value types, identifier
// format, and storage contract shared by every fieldops backend.
package domain

import "time"

// EntityType identifies the type of record stored by a backend.
type EntityType string

// Supported entity type identifiers used in errors and persistence buckets.
const (
	EntityUser         EntityType = "user"
	EntityTeam         EntityType = "team"
	EntityTask         EntityType = "task"
	EntityFeature      EntityType = "feature"
	EntityBoundary     EntityType = "boundary"
	EntityTaskUpdate   EntityType = "task_update"
	EntityTaskEvidence EntityType = "task_evidence"
)

// Role distinguishes supervisors from field workers.
type Role string

// Canonical user roles.
const (
	RoleSupervisor Role = "Supervisor"
	RoleField      Role = "Field"
)

// Valid reports whether the role is one of the canonical values.
func (r Role) Valid() bool { return r == RoleSupervisor || r == RoleField }

// TeamStatus tracks the approval workflow of a team.
type TeamStatus string

// Canonical team statuses.
const (
	TeamPending  TeamStatus = "Pending"
	TeamApproved TeamStatus = "Approved"
	TeamRejected TeamStatus = "Rejected"
)

// Valid reports whether the status is one of the canonical values.
func (s TeamStatus) Valid() bool {
	return s == TeamPending || s == TeamApproved || s == TeamRejected
}

// TaskStatus enumerates the task workflow states.
type TaskStatus string

// Canonical task statuses. The spelling of each value is load-bearing: it is
// persisted verbatim by every backend and echoed in audit records.
const (
	TaskUnassigned       TaskStatus = "Unassigned"
	TaskAssigned         TaskStatus = "Assigned"
	TaskInProgress       TaskStatus = "In Progress"
	TaskIncomplete       TaskStatus = "In-Complete"
	TaskSubmitReview     TaskStatus = "Submit-Review"
	TaskReviewInProgress TaskStatus = "Review_inprogress"
	TaskReviewAccepted   TaskStatus = "Review_Accepted"
	TaskReviewRejected   TaskStatus = "Review_Reject"
	TaskCompleted        TaskStatus = "Completed"
)

// TaskStatuses lists every canonical task status.
var TaskStatuses = []TaskStatus{
	TaskUnassigned, TaskAssigned, TaskInProgress, TaskIncomplete,
	TaskSubmitReview, TaskReviewInProgress, TaskReviewAccepted,
	TaskReviewRejected, TaskCompleted,
}

// Valid reports whether the status is one of the canonical values.
func (s TaskStatus) Valid() bool {
	for _, v := range TaskStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// TaskPriority ranks tasks for assignment.
type TaskPriority string

// Canonical task priorities.
const (
	PriorityLow    TaskPriority = "Low"
	PriorityMedium TaskPriority = "Medium"
	PriorityHigh   TaskPriority = "High"
)

// Valid reports whether the priority is one of the canonical values.
func (p TaskPriority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// FeatureState tracks the construction lifecycle of a geographic feature.
type FeatureState string

// Canonical feature states.
const (
	FeaturePlan              FeatureState = "Plan"
	FeatureUnderConstruction FeatureState = "Under Construction"
	FeatureAsBuilt           FeatureState = "As-Built"
	FeatureAbandoned         FeatureState = "Abandoned"
)

// Valid reports whether the state is one of the canonical values.
func (s FeatureState) Valid() bool {
	return s == FeaturePlan || s == FeatureUnderConstruction || s == FeatureAsBuilt || s == FeatureAbandoned
}

// MaintenanceStatus tracks outstanding maintenance on a feature.
type MaintenanceStatus string

// Canonical maintenance statuses.
const (
	MaintenanceNone      MaintenanceStatus = "None"
	MaintenanceRequired  MaintenanceStatus = "Required"
	MaintenanceCompleted MaintenanceStatus = "Completed"
)

// Valid reports whether the status is one of the canonical values.
func (s MaintenanceStatus) Valid() bool {
	return s == MaintenanceNone || s == MaintenanceRequired || s == MaintenanceCompleted
}

// Base contains the common fields carried by all persisted records.
type Base struct {
	ID        string    `json:"id" bson:"_id"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// User represents a supervisor or field worker account. TeamID is a weak
// reference resolved by lookup; it carries no ownership.
type User struct {
	Base            `bson:",inline"`
	Username        string    `json:"username" bson:"username"`
	PasswordHash    string    `json:"passwordHash" bson:"passwordHash"`
	Role            Role      `json:"role" bson:"role"`
	TeamID          *string   `json:"teamId,omitempty" bson:"teamId,omitempty"`
	LastActive      time.Time `json:"lastActive" bson:"lastActive"`
	CurrentLocation *Geometry `json:"currentLocation,omitempty" bson:"currentLocation,omitempty"`
}

// Team groups field workers under a supervisor-approved unit.
type Team struct {
	Base       `bson:",inline"`
	Name       string     `json:"name" bson:"name"`
	Status     TeamStatus `json:"status" bson:"status"`
	CreatedBy  string     `json:"createdBy" bson:"createdBy"`
	ApprovedBy *string    `json:"approvedBy,omitempty" bson:"approvedBy,omitempty"`
}

// Task is a unit of field work, optionally pinned to a location, boundary,
// and feature.
type Task struct {
	Base        `bson:",inline"`
	Title       string       `json:"title" bson:"title"`
	Description string       `json:"description,omitempty" bson:"description,omitempty"`
	Status      TaskStatus   `json:"status" bson:"status"`
	Priority    TaskPriority `json:"priority" bson:"priority"`
	CreatedBy   string       `json:"createdBy" bson:"createdBy"`
	AssignedTo  *string      `json:"assignedTo,omitempty" bson:"assignedTo,omitempty"`
	Location    *Geometry    `json:"location,omitempty" bson:"location,omitempty"`
	BoundaryID  *string      `json:"boundaryId,omitempty" bson:"boundaryId,omitempty"`
	FeatureID   *string      `json:"featureId,omitempty" bson:"featureId,omitempty"`
}

// Feature is a surveyed geographic asset (pipe, pole, chamber, ...).
type Feature struct {
	Base         `bson:",inline"`
	Name         string            `json:"name" bson:"name"`
	FeaNo        string            `json:"feaNo" bson:"feaNo"`
	FeaState     FeatureState      `json:"feaState" bson:"feaState"`
	FeaStatus    string            `json:"feaStatus" bson:"feaStatus"`
	FeaType      string            `json:"feaType" bson:"feaType"`
	SpecificType string            `json:"specificType,omitempty" bson:"specificType,omitempty"`
	Maintenance  MaintenanceStatus `json:"maintenance" bson:"maintenance"`
	Geometry     Geometry          `json:"geometry" bson:"geometry"`
	BoundaryID   *string           `json:"boundaryId,omitempty" bson:"boundaryId,omitempty"`
	CreatedBy    string            `json:"createdBy" bson:"createdBy"`
}

// FeatureUpdate carries a partial feature mutation; nil fields are left
// untouched (update-with-merge semantics).
type FeatureUpdate struct {
	Name         *string            `json:"name,omitempty"`
	FeaNo        *string            `json:"feaNo,omitempty"`
	FeaState     *FeatureState      `json:"feaState,omitempty"`
	FeaStatus    *string            `json:"feaStatus,omitempty"`
	FeaType      *string            `json:"feaType,omitempty"`
	SpecificType *string            `json:"specificType,omitempty"`
	Maintenance  *MaintenanceStatus `json:"maintenance,omitempty"`
	Geometry     *Geometry          `json:"geometry,omitempty"`
	BoundaryID   *string            `json:"boundaryId,omitempty"`
}

// Boundary is a survey area delimited by a closed polygon.
type Boundary struct {
	Base       `bson:",inline"`
	Name       string   `json:"name" bson:"name"`
	Status     string   `json:"status" bson:"status"`
	AssignedTo *string  `json:"assignedTo,omitempty" bson:"assignedTo,omitempty"`
	Geometry   Geometry `json:"geometry" bson:"geometry"`
}

// TaskUpdate is the append-only audit record emitted for every task status
// transition. It is never mutated after creation.
type TaskUpdate struct {
	Base      `bson:",inline"`
	TaskID    string     `json:"taskId" bson:"taskId"`
	UserID    string     `json:"userId" bson:"userId"`
	OldStatus TaskStatus `json:"oldStatus" bson:"oldStatus"`
	NewStatus TaskStatus `json:"newStatus" bson:"newStatus"`
	Comment   string     `json:"comment" bson:"comment"`
}

// TaskEvidence is an append-only photo record attached to a task.
type TaskEvidence struct {
	Base        `bson:",inline"`
	TaskID      string `json:"taskId" bson:"taskId"`
	UserID      string `json:"userId" bson:"userId"`
	ImageURL    string `json:"imageUrl" bson:"imageUrl"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
}

// TaskStats aggregates a user's tasks by status.
type TaskStats struct {
	Total    int                `json:"total"`
	ByStatus map[TaskStatus]int `json:"byStatus"`
}

// FeatureTypeCount is one row of the per-type feature census.
type FeatureTypeCount struct {
	FeaType string `json:"feaType" bson:"_id"`
	Count   int    `json:"count" bson:"count"`
}
