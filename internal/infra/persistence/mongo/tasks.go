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

// CreateTask validates input and weak references and inserts the task.
// Supplying an assignee at creation forces status to Assigned.
func (s *Store) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
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
	if err := s.checkRef(ctx, colUsers, domain.EntityUser, task.AssignedTo, "assignee does not exist"); err != nil {
		return domain.Task{}, err
	}
	if task.AssignedTo != nil {
		task.Status = domain.TaskAssigned
	}
	if err := s.checkRef(ctx, colBoundaries, domain.EntityBoundary, task.BoundaryID, "boundary does not exist"); err != nil {
		return domain.Task{}, err
	}
	if err := s.checkRef(ctx, colFeatures, domain.EntityFeature, task.FeatureID, "feature does not exist"); err != nil {
		return domain.Task{}, err
	}

	now := s.now()
	task.ID = s.idFn()
	task.CreatedAt = now
	task.UpdatedAt = now
	if err := s.insert(ctx, colTasks, &task, func(id string) { task.ID = id }); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// checkRef validates an optional weak reference against a collection.
func (s *Store) checkRef(ctx context.Context, col string, entity domain.EntityType, id *string, reason string) error {
	if id == nil {
		return nil
	}
	if err := domain.ValidateID(*id); err != nil {
		return err
	}
	ok, err := s.exists(ctx, col, *id)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.ReferentialIntegrityError{Entity: entity, ID: *id, Reason: reason}
	}
	return nil
}

// GetTask returns the task, treating a malformed id as absent.
func (s *Store) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return getByID[domain.Task](ctx, s, colTasks, domain.EntityTask, id)
}

// UpdateTaskStatus writes the new status and appends exactly one audit record
// carrying the pre-write status.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status domain.TaskStatus, userID string) (domain.Task, error) {
	return s.applyStatus(ctx, id, status, userID)
}

// applyStatus performs the status write plus audit insert. The status write
// is conditioned on the previously read status so the audit's OldStatus is
// the value actually replaced; a concurrent writer triggers a re-read. If the
// audit insert fails the status write is compensated so the two never
// diverge.
func (s *Store) applyStatus(ctx context.Context, id string, status domain.TaskStatus, userID string) (domain.Task, error) {
	if err := domain.ValidateID(id); err != nil {
		return domain.Task{}, err
	}
	if !status.Valid() {
		return domain.Task{}, &domain.ValidationError{Field: "status", Reason: "invalid task status"}
	}
	if err := domain.ValidateID(userID); err != nil {
		return domain.Task{}, err
	}

	for {
		prev, err := getByID[domain.Task](ctx, s, colTasks, domain.EntityTask, id)
		if err != nil {
			return domain.Task{}, err
		}
		now := s.now()
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		var task domain.Task
		err = s.col(colTasks).FindOneAndUpdate(ctx,
			bson.M{"_id": id, "status": prev.Status},
			bson.M{"$set": bson.M{"status": status, "updatedAt": now}},
			opts,
		).Decode(&task)
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Lost the race to another status writer; re-read and retry.
			continue
		}
		if err != nil {
			return domain.Task{}, &domain.PersistenceError{Op: "update tasks", Err: err}
		}

		audit := domain.TaskUpdate{
			TaskID:    id,
			UserID:    userID,
			OldStatus: prev.Status,
			NewStatus: status,
			Comment:   "Status updated to " + string(status),
		}
		audit.ID = s.idFn()
		audit.CreatedAt = now
		audit.UpdatedAt = now
		if err := s.insert(ctx, colUpdates, &audit, func(id string) { audit.ID = id }); err != nil {
			// Compensate the status write so status and audit stay paired.
			_, _ = s.col(colTasks).UpdateOne(ctx,
				bson.M{"_id": id, "status": status},
				bson.M{"$set": bson.M{"status": prev.Status, "updatedAt": prev.UpdatedAt}},
			)
			return domain.Task{}, err
		}
		return task, nil
	}
}

// AssignTask sets the assignee and forces status to Assigned regardless of
// the prior status. Assignment is distinct from the audited status change.
func (s *Store) AssignTask(ctx context.Context, id, userID string) (domain.Task, error) {
	if err := domain.ValidateID(id); err != nil {
		return domain.Task{}, err
	}
	if err := domain.ValidateID(userID); err != nil {
		return domain.Task{}, err
	}
	if _, err := getByID[domain.Task](ctx, s, colTasks, domain.EntityTask, id); err != nil {
		return domain.Task{}, err
	}
	ok, err := s.exists(ctx, colUsers, userID)
	if err != nil {
		return domain.Task{}, err
	}
	if !ok {
		return domain.Task{}, &domain.ReferentialIntegrityError{Entity: domain.EntityUser, ID: userID, Reason: "assignee does not exist"}
	}
	return updateOne[domain.Task](ctx, s, colTasks, domain.EntityTask, id, bson.M{
		"assignedTo": userID,
		"status":     domain.TaskAssigned,
		"updatedAt":  s.now(),
	})
}

// ListTasksByAssignee returns tasks assigned to the user, ordered by id.
func (s *Store) ListTasksByAssignee(ctx context.Context, userID string) ([]domain.Task, error) {
	return findAll[domain.Task](ctx, s, colTasks, bson.M{"assignedTo": userID})
}

// ListTasksByCreator returns tasks created by the user, ordered by id.
func (s *Store) ListTasksByCreator(ctx context.Context, userID string) ([]domain.Task, error) {
	return findAll[domain.Task](ctx, s, colTasks, bson.M{"createdBy": userID})
}

// ListTasks returns every task ordered by id.
func (s *Store) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return findAll[domain.Task](ctx, s, colTasks, bson.M{})
}

// CreateTaskUpdate appends an audit record directly; records are immutable
// once stored.
func (s *Store) CreateTaskUpdate(ctx context.Context, update domain.TaskUpdate) (domain.TaskUpdate, error) {
	if err := domain.ValidateID(update.TaskID); err != nil {
		return domain.TaskUpdate{}, err
	}
	if err := domain.ValidateID(update.UserID); err != nil {
		return domain.TaskUpdate{}, err
	}
	if !update.OldStatus.Valid() || !update.NewStatus.Valid() {
		return domain.TaskUpdate{}, &domain.ValidationError{Field: "status", Reason: "invalid task status"}
	}
	ok, err := s.exists(ctx, colTasks, update.TaskID)
	if err != nil {
		return domain.TaskUpdate{}, err
	}
	if !ok {
		return domain.TaskUpdate{}, &domain.ReferentialIntegrityError{Entity: domain.EntityTask, ID: update.TaskID, Reason: "task does not exist"}
	}
	now := s.now()
	update.ID = s.idFn()
	update.CreatedAt = now
	update.UpdatedAt = now
	if err := s.insert(ctx, colUpdates, &update, func(id string) { update.ID = id }); err != nil {
		return domain.TaskUpdate{}, err
	}
	return update, nil
}

// ListTaskUpdates returns a task's audit trail in chronological (id) order.
func (s *Store) ListTaskUpdates(ctx context.Context, taskID string) ([]domain.TaskUpdate, error) {
	return findAll[domain.TaskUpdate](ctx, s, colUpdates, bson.M{"taskId": taskID})
}

// AddTaskEvidence appends a photo record for a task.
func (s *Store) AddTaskEvidence(ctx context.Context, evidence domain.TaskEvidence) (domain.TaskEvidence, error) {
	if err := domain.ValidateID(evidence.TaskID); err != nil {
		return domain.TaskEvidence{}, err
	}
	if err := domain.ValidateID(evidence.UserID); err != nil {
		return domain.TaskEvidence{}, err
	}
	if strings.TrimSpace(evidence.ImageURL) == "" {
		return domain.TaskEvidence{}, &domain.ValidationError{Field: "imageUrl", Reason: "required"}
	}
	ok, err := s.exists(ctx, colTasks, evidence.TaskID)
	if err != nil {
		return domain.TaskEvidence{}, err
	}
	if !ok {
		return domain.TaskEvidence{}, &domain.ReferentialIntegrityError{Entity: domain.EntityTask, ID: evidence.TaskID, Reason: "task does not exist"}
	}
	now := s.now()
	evidence.ID = s.idFn()
	evidence.CreatedAt = now
	evidence.UpdatedAt = now
	if err := s.insert(ctx, colEvidence, &evidence, func(id string) { evidence.ID = id }); err != nil {
		return domain.TaskEvidence{}, err
	}
	return evidence, nil
}

// ListTaskEvidence returns a task's evidence records in id order.
func (s *Store) ListTaskEvidence(ctx context.Context, taskID string) ([]domain.TaskEvidence, error) {
	return findAll[domain.TaskEvidence](ctx, s, colEvidence, bson.M{"taskId": taskID})
}
