package memory

import (
	"context"
	"sort"
	"strings"

	"fieldops/pkg/domain"
)

// CreateTask validates input and weak references and stores the task.
// Supplying an assignee at creation forces status to Assigned.
func (s *Store) CreateTask(_ context.Context, task domain.Task) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(task.Title) == "" {
		return domain.Task{}, &domain.ValidationError{Field: "title", Reason: "required"}
	}
	if task.Status == "" {
		task.Status = domain.TaskUnassigned
	}
	if !task.Status.Valid() {
		return domain.Task{}, &domain.ValidationError{Field: "status", Reason: "invalid task status"}
	}
	if task.Priority == "" {
		task.Priority = domain.PriorityMedium
	}
	if !task.Priority.Valid() {
		return domain.Task{}, &domain.ValidationError{Field: "priority", Reason: "invalid task priority"}
	}
	if err := domain.ValidateID(task.CreatedBy); err != nil {
		return domain.Task{}, err
	}
	if task.Location != nil && task.Location.Type() != domain.GeometryPoint {
		return domain.Task{}, &domain.ValidationError{Field: "location", Reason: "must be a point"}
	}
	if task.AssignedTo != nil {
		if err := domain.ValidateID(*task.AssignedTo); err != nil {
			return domain.Task{}, err
		}
		if _, ok := s.state.users[*task.AssignedTo]; !ok {
			return domain.Task{}, &domain.ReferentialIntegrityError{Entity: domain.EntityUser, ID: *task.AssignedTo, Reason: "assignee does not exist"}
		}
		task.Status = domain.TaskAssigned
	}
	if task.BoundaryID != nil {
		if err := domain.ValidateID(*task.BoundaryID); err != nil {
			return domain.Task{}, err
		}
		if _, ok := s.state.boundaries[*task.BoundaryID]; !ok {
			return domain.Task{}, &domain.ReferentialIntegrityError{Entity: domain.EntityBoundary, ID: *task.BoundaryID, Reason: "boundary does not exist"}
		}
	}
	if task.FeatureID != nil {
		if err := domain.ValidateID(*task.FeatureID); err != nil {
			return domain.Task{}, err
		}
		if _, ok := s.state.features[*task.FeatureID]; !ok {
			return domain.Task{}, &domain.ReferentialIntegrityError{Entity: domain.EntityFeature, ID: *task.FeatureID, Reason: "feature does not exist"}
		}
	}

	now := s.now()
	task.ID = s.newID(func(id string) bool { _, ok := s.state.tasks[id]; return ok })
	task.CreatedAt = now
	task.UpdatedAt = now
	s.state.tasks[task.ID] = cloneTask(task)
	return cloneTask(task), nil
}

// GetTask returns the task, treating a malformed id as absent.
func (s *Store) GetTask(_ context.Context, id string) (domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.tasks[id]
	if !domain.IsValidID(id) || !ok {
		return domain.Task{}, &domain.NotFoundError{Entity: domain.EntityTask, ID: id}
	}
	return cloneTask(t), nil
}

// UpdateTaskStatus writes the new status and appends exactly one audit
// record carrying the pre-write status. Both writes happen under one lock
// hold, so they are atomic with respect to every other operation.
func (s *Store) UpdateTaskStatus(_ context.Context, id string, status domain.TaskStatus, userID string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, err := s.applyStatus(id, status, userID)
	if err != nil {
		return domain.Task{}, err
	}
	return cloneTask(task), nil
}

// applyStatus performs the status write plus audit append. Caller holds the
// write lock.
func (s *Store) applyStatus(id string, status domain.TaskStatus, userID string) (domain.Task, error) {
	if err := domain.ValidateID(id); err != nil {
		return domain.Task{}, err
	}
	if !status.Valid() {
		return domain.Task{}, &domain.ValidationError{Field: "status", Reason: "invalid task status"}
	}
	if err := domain.ValidateID(userID); err != nil {
		return domain.Task{}, err
	}
	task, ok := s.state.tasks[id]
	if !ok {
		return domain.Task{}, &domain.NotFoundError{Entity: domain.EntityTask, ID: id}
	}

	now := s.now()
	old := task.Status
	task.Status = status
	task.UpdatedAt = now
	s.state.tasks[id] = task

	audit := domain.TaskUpdate{
		TaskID:    id,
		UserID:    userID,
		OldStatus: old,
		NewStatus: status,
		Comment:   "Status updated to " + string(status),
	}
	audit.ID = s.newID(func(id string) bool { _, ok := s.state.updates[id]; return ok })
	audit.CreatedAt = now
	audit.UpdatedAt = now
	s.state.updates[audit.ID] = audit
	return task, nil
}

// AssignTask sets the assignee and forces status to Assigned regardless of
// the prior status. Assignment is distinct from the audited status change.
func (s *Store) AssignTask(_ context.Context, id, userID string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := domain.ValidateID(id); err != nil {
		return domain.Task{}, err
	}
	if err := domain.ValidateID(userID); err != nil {
		return domain.Task{}, err
	}
	task, ok := s.state.tasks[id]
	if !ok {
		return domain.Task{}, &domain.NotFoundError{Entity: domain.EntityTask, ID: id}
	}
	if _, ok := s.state.users[userID]; !ok {
		return domain.Task{}, &domain.ReferentialIntegrityError{Entity: domain.EntityUser, ID: userID, Reason: "assignee does not exist"}
	}
	task.AssignedTo = strPtr(userID)
	task.Status = domain.TaskAssigned
	task.UpdatedAt = s.now()
	s.state.tasks[id] = task
	return cloneTask(task), nil
}

// ListTasksByAssignee returns tasks assigned to the user, ordered by id.
func (s *Store) ListTasksByAssignee(_ context.Context, userID string) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, 0)
	for _, t := range s.state.tasks {
		if t.AssignedTo != nil && *t.AssignedTo == userID {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListTasksByCreator returns tasks created by the user, ordered by id.
func (s *Store) ListTasksByCreator(_ context.Context, userID string) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, 0)
	for _, t := range s.state.tasks {
		if t.CreatedBy == userID {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListTasks returns every task ordered by id.
func (s *Store) ListTasks(_ context.Context) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, 0, len(s.state.tasks))
	for _, t := range s.state.tasks {
		out = append(out, cloneTask(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateTaskUpdate appends an audit record directly; records are immutable
// once stored.
func (s *Store) CreateTaskUpdate(_ context.Context, update domain.TaskUpdate) (domain.TaskUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := domain.ValidateID(update.TaskID); err != nil {
		return domain.TaskUpdate{}, err
	}
	if err := domain.ValidateID(update.UserID); err != nil {
		return domain.TaskUpdate{}, err
	}
	if !update.OldStatus.Valid() || !update.NewStatus.Valid() {
		return domain.TaskUpdate{}, &domain.ValidationError{Field: "status", Reason: "invalid task status"}
	}
	if _, ok := s.state.tasks[update.TaskID]; !ok {
		return domain.TaskUpdate{}, &domain.ReferentialIntegrityError{Entity: domain.EntityTask, ID: update.TaskID, Reason: "task does not exist"}
	}
	now := s.now()
	update.ID = s.newID(func(id string) bool { _, ok := s.state.updates[id]; return ok })
	update.CreatedAt = now
	update.UpdatedAt = now
	s.state.updates[update.ID] = update
	return update, nil
}

// ListTaskUpdates returns a task's audit trail in chronological (id) order.
func (s *Store) ListTaskUpdates(_ context.Context, taskID string) ([]domain.TaskUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TaskUpdate, 0)
	for _, u := range s.state.updates {
		if u.TaskID == taskID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AddTaskEvidence appends a photo record for a task.
func (s *Store) AddTaskEvidence(_ context.Context, evidence domain.TaskEvidence) (domain.TaskEvidence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := domain.ValidateID(evidence.TaskID); err != nil {
		return domain.TaskEvidence{}, err
	}
	if err := domain.ValidateID(evidence.UserID); err != nil {
		return domain.TaskEvidence{}, err
	}
	if strings.TrimSpace(evidence.ImageURL) == "" {
		return domain.TaskEvidence{}, &domain.ValidationError{Field: "imageUrl", Reason: "required"}
	}
	if _, ok := s.state.tasks[evidence.TaskID]; !ok {
		return domain.TaskEvidence{}, &domain.ReferentialIntegrityError{Entity: domain.EntityTask, ID: evidence.TaskID, Reason: "task does not exist"}
	}
	now := s.now()
	evidence.ID = s.newID(func(id string) bool { _, ok := s.state.evidence[id]; return ok })
	evidence.CreatedAt = now
	evidence.UpdatedAt = now
	s.state.evidence[evidence.ID] = evidence
	return evidence, nil
}

// ListTaskEvidence returns a task's evidence records in id order.
func (s *Store) ListTaskEvidence(_ context.Context, taskID string) ([]domain.TaskEvidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TaskEvidence, 0)
	for _, e := range s.state.evidence {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
