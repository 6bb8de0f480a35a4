package memory

import (
	"context"
	"sort"
	"strings"

	"fieldops/pkg/domain"
)

// CreateFeature validates and stores a surveyed feature. Geometry is
// required and must already be a well-formed tagged variant.
func (s *Store) CreateFeature(_ context.Context, feature domain.Feature) (domain.Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(feature.Name) == "" {
		return domain.Feature{}, &domain.ValidationError{Field: "name", Reason: "required"}
	}
	if strings.TrimSpace(feature.FeaType) == "" {
		return domain.Feature{}, &domain.ValidationError{Field: "feaType", Reason: "required"}
	}
	if feature.Geometry.IsZero() {
		return domain.Feature{}, &domain.ValidationError{Field: "geometry", Reason: "required"}
	}
	if feature.FeaState == "" {
		feature.FeaState = domain.FeaturePlan
	}
	if !feature.FeaState.Valid() {
		return domain.Feature{}, &domain.ValidationError{Field: "feaState", Reason: "invalid feature state"}
	}
	if feature.Maintenance == "" {
		feature.Maintenance = domain.MaintenanceNone
	}
	if !feature.Maintenance.Valid() {
		return domain.Feature{}, &domain.ValidationError{Field: "maintenance", Reason: "invalid maintenance status"}
	}
	if err := domain.ValidateID(feature.CreatedBy); err != nil {
		return domain.Feature{}, err
	}
	if feature.BoundaryID != nil {
		if err := domain.ValidateID(*feature.BoundaryID); err != nil {
			return domain.Feature{}, err
		}
		if _, ok := s.state.boundaries[*feature.BoundaryID]; !ok {
			return domain.Feature{}, &domain.ReferentialIntegrityError{Entity: domain.EntityBoundary, ID: *feature.BoundaryID, Reason: "boundary does not exist"}
		}
	}

	now := s.now()
	feature.ID = s.newID(func(id string) bool { _, ok := s.state.features[id]; return ok })
	feature.CreatedAt = now
	feature.UpdatedAt = now
	s.state.features[feature.ID] = cloneFeature(feature)
	return cloneFeature(feature), nil
}

// GetFeature returns the feature, treating a malformed id as absent.
func (s *Store) GetFeature(_ context.Context, id string) (domain.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.state.features[id]
	if !domain.IsValidID(id) || !ok {
		return domain.Feature{}, &domain.NotFoundError{Entity: domain.EntityFeature, ID: id}
	}
	return cloneFeature(f), nil
}

// UpdateFeature merges the non-nil fields of update into the stored feature.
func (s *Store) UpdateFeature(_ context.Context, id string, update domain.FeatureUpdate) (domain.Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := domain.ValidateID(id); err != nil {
		return domain.Feature{}, err
	}
	f, ok := s.state.features[id]
	if !ok {
		return domain.Feature{}, &domain.NotFoundError{Entity: domain.EntityFeature, ID: id}
	}
	if update.Name != nil {
		if strings.TrimSpace(*update.Name) == "" {
			return domain.Feature{}, &domain.ValidationError{Field: "name", Reason: "cannot be empty"}
		}
		f.Name = *update.Name
	}
	if update.FeaNo != nil {
		f.FeaNo = *update.FeaNo
	}
	if update.FeaState != nil {
		if !update.FeaState.Valid() {
			return domain.Feature{}, &domain.ValidationError{Field: "feaState", Reason: "invalid feature state"}
		}
		f.FeaState = *update.FeaState
	}
	if update.FeaStatus != nil {
		f.FeaStatus = *update.FeaStatus
	}
	if update.FeaType != nil {
		if strings.TrimSpace(*update.FeaType) == "" {
			return domain.Feature{}, &domain.ValidationError{Field: "feaType", Reason: "cannot be empty"}
		}
		f.FeaType = *update.FeaType
	}
	if update.SpecificType != nil {
		f.SpecificType = *update.SpecificType
	}
	if update.Maintenance != nil {
		if !update.Maintenance.Valid() {
			return domain.Feature{}, &domain.ValidationError{Field: "maintenance", Reason: "invalid maintenance status"}
		}
		f.Maintenance = *update.Maintenance
	}
	if update.Geometry != nil {
		if update.Geometry.IsZero() {
			return domain.Feature{}, &domain.ValidationError{Field: "geometry", Reason: "cannot be empty"}
		}
		f.Geometry = update.Geometry.Clone()
	}
	if update.BoundaryID != nil {
		if err := domain.ValidateID(*update.BoundaryID); err != nil {
			return domain.Feature{}, err
		}
		if _, ok := s.state.boundaries[*update.BoundaryID]; !ok {
			return domain.Feature{}, &domain.ReferentialIntegrityError{Entity: domain.EntityBoundary, ID: *update.BoundaryID, Reason: "boundary does not exist"}
		}
		f.BoundaryID = cloneStrPtr(update.BoundaryID)
	}
	f.UpdatedAt = s.now()
	s.state.features[id] = f
	return cloneFeature(f), nil
}

// DeleteFeature removes the feature. Deleting an absent (or malformed) id
// reports false without error.
func (s *Store) DeleteFeature(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !domain.IsValidID(id) {
		return false, nil
	}
	if _, ok := s.state.features[id]; !ok {
		return false, nil
	}
	delete(s.state.features, id)
	return true, nil
}

// ListFeaturesByType returns features of the given type, ordered by id.
func (s *Store) ListFeaturesByType(_ context.Context, feaType string) ([]domain.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Feature, 0)
	for _, f := range s.state.features {
		if f.FeaType == feaType {
			out = append(out, cloneFeature(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListFeaturesByStatus returns features with the given status, ordered by id.
func (s *Store) ListFeaturesByStatus(_ context.Context, feaStatus string) ([]domain.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Feature, 0)
	for _, f := range s.state.features {
		if f.FeaStatus == feaStatus {
			out = append(out, cloneFeature(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateBoundary stores a survey boundary; geometry must be a closed polygon.
func (s *Store) CreateBoundary(_ context.Context, boundary domain.Boundary) (domain.Boundary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(boundary.Name) == "" {
		return domain.Boundary{}, &domain.ValidationError{Field: "name", Reason: "required"}
	}
	if boundary.Geometry.Type() != domain.GeometryPolygon {
		return domain.Boundary{}, &domain.ValidationError{Field: "geometry", Reason: "must be a polygon"}
	}
	if boundary.Status == "" {
		boundary.Status = "Unassigned"
	}
	if boundary.AssignedTo != nil {
		if err := domain.ValidateID(*boundary.AssignedTo); err != nil {
			return domain.Boundary{}, err
		}
		if _, ok := s.state.users[*boundary.AssignedTo]; !ok {
			return domain.Boundary{}, &domain.ReferentialIntegrityError{Entity: domain.EntityUser, ID: *boundary.AssignedTo, Reason: "assignee does not exist"}
		}
	}

	now := s.now()
	boundary.ID = s.newID(func(id string) bool { _, ok := s.state.boundaries[id]; return ok })
	boundary.CreatedAt = now
	boundary.UpdatedAt = now
	s.state.boundaries[boundary.ID] = cloneBoundary(boundary)
	return cloneBoundary(boundary), nil
}

// GetBoundary returns the boundary, treating a malformed id as absent.
func (s *Store) GetBoundary(_ context.Context, id string) (domain.Boundary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.state.boundaries[id]
	if !domain.IsValidID(id) || !ok {
		return domain.Boundary{}, &domain.NotFoundError{Entity: domain.EntityBoundary, ID: id}
	}
	return cloneBoundary(b), nil
}

// UpdateBoundaryStatus replaces the boundary's status.
func (s *Store) UpdateBoundaryStatus(_ context.Context, id, status string) (domain.Boundary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := domain.ValidateID(id); err != nil {
		return domain.Boundary{}, err
	}
	if strings.TrimSpace(status) == "" {
		return domain.Boundary{}, &domain.ValidationError{Field: "status", Reason: "required"}
	}
	b, ok := s.state.boundaries[id]
	if !ok {
		return domain.Boundary{}, &domain.NotFoundError{Entity: domain.EntityBoundary, ID: id}
	}
	b.Status = status
	b.UpdatedAt = s.now()
	s.state.boundaries[id] = b
	return cloneBoundary(b), nil
}

// AssignBoundary sets the surveyor responsible for the boundary.
func (s *Store) AssignBoundary(_ context.Context, id, userID string) (domain.Boundary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := domain.ValidateID(id); err != nil {
		return domain.Boundary{}, err
	}
	if err := domain.ValidateID(userID); err != nil {
		return domain.Boundary{}, err
	}
	b, ok := s.state.boundaries[id]
	if !ok {
		return domain.Boundary{}, &domain.NotFoundError{Entity: domain.EntityBoundary, ID: id}
	}
	if _, ok := s.state.users[userID]; !ok {
		return domain.Boundary{}, &domain.ReferentialIntegrityError{Entity: domain.EntityUser, ID: userID, Reason: "assignee does not exist"}
	}
	b.AssignedTo = strPtr(userID)
	b.UpdatedAt = s.now()
	s.state.boundaries[id] = b
	return cloneBoundary(b), nil
}
