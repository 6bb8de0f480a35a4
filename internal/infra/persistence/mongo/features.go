package mongo

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"fieldops/pkg/domain"
)

// CreateFeature validates and inserts a surveyed feature. Geometry is
// required and must already be a well-formed tagged variant.
func (s *Store) CreateFeature(ctx context.Context, feature domain.Feature) (domain.Feature, error) {
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
	if err := s.checkRef(ctx, colBoundaries, domain.EntityBoundary, feature.BoundaryID, "boundary does not exist"); err != nil {
		return domain.Feature{}, err
	}

	now := s.now()
	feature.ID = s.idFn()
	feature.CreatedAt = now
	feature.UpdatedAt = now
	if err := s.insert(ctx, colFeatures, &feature, func(id string) { feature.ID = id }); err != nil {
		return domain.Feature{}, err
	}
	return feature, nil
}

// GetFeature returns the feature, treating a malformed id as absent.
func (s *Store) GetFeature(ctx context.Context, id string) (domain.Feature, error) {
	return getByID[domain.Feature](ctx, s, colFeatures, domain.EntityFeature, id)
}

// UpdateFeature merges the non-nil fields of update into the stored feature.
func (s *Store) UpdateFeature(ctx context.Context, id string, update domain.FeatureUpdate) (domain.Feature, error) {
	if err := domain.ValidateID(id); err != nil {
		return domain.Feature{}, err
	}
	set := bson.M{}
	if update.Name != nil {
		if strings.TrimSpace(*update.Name) == "" {
			return domain.Feature{}, &domain.ValidationError{Field: "name", Reason: "cannot be empty"}
		}
		set["name"] = *update.Name
	}
	if update.FeaNo != nil {
		set["feaNo"] = *update.FeaNo
	}
	if update.FeaState != nil {
		if !update.FeaState.Valid() {
			return domain.Feature{}, &domain.ValidationError{Field: "feaState", Reason: "invalid feature state"}
		}
		set["feaState"] = *update.FeaState
	}
	if update.FeaStatus != nil {
		set["feaStatus"] = *update.FeaStatus
	}
	if update.FeaType != nil {
		if strings.TrimSpace(*update.FeaType) == "" {
			return domain.Feature{}, &domain.ValidationError{Field: "feaType", Reason: "cannot be empty"}
		}
		set["feaType"] = *update.FeaType
	}
	if update.SpecificType != nil {
		set["specificType"] = *update.SpecificType
	}
	if update.Maintenance != nil {
		if !update.Maintenance.Valid() {
			return domain.Feature{}, &domain.ValidationError{Field: "maintenance", Reason: "invalid maintenance status"}
		}
		set["maintenance"] = *update.Maintenance
	}
	if update.Geometry != nil {
		if update.Geometry.IsZero() {
			return domain.Feature{}, &domain.ValidationError{Field: "geometry", Reason: "cannot be empty"}
		}
		set["geometry"] = *update.Geometry
	}
	if update.BoundaryID != nil {
		if err := s.checkRef(ctx, colBoundaries, domain.EntityBoundary, update.BoundaryID, "boundary does not exist"); err != nil {
			return domain.Feature{}, err
		}
		set["boundaryId"] = *update.BoundaryID
	}
	set["updatedAt"] = s.now()
	return updateOne[domain.Feature](ctx, s, colFeatures, domain.EntityFeature, id, set)
}

// DeleteFeature removes the feature. Deleting an absent (or malformed) id
// reports false without error.
func (s *Store) DeleteFeature(ctx context.Context, id string) (bool, error) {
	if !domain.IsValidID(id) {
		return false, nil
	}
	res, err := s.col(colFeatures).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, &domain.PersistenceError{Op: "delete features", Err: err}
	}
	return res.DeletedCount > 0, nil
}

// ListFeaturesByType returns features of the given type, ordered by id.
func (s *Store) ListFeaturesByType(ctx context.Context, feaType string) ([]domain.Feature, error) {
	return findAll[domain.Feature](ctx, s, colFeatures, bson.M{"feaType": feaType})
}

// ListFeaturesByStatus returns features with the given status, ordered by id.
func (s *Store) ListFeaturesByStatus(ctx context.Context, feaStatus string) ([]domain.Feature, error) {
	return findAll[domain.Feature](ctx, s, colFeatures, bson.M{"feaStatus": feaStatus})
}

// CreateBoundary inserts a survey boundary; geometry must be a closed polygon.
func (s *Store) CreateBoundary(ctx context.Context, boundary domain.Boundary) (domain.Boundary, error) {
	if strings.TrimSpace(boundary.Name) == "" {
		return domain.Boundary{}, &domain.ValidationError{Field: "name", Reason: "required"}
	}
	if boundary.Geometry.Type() != domain.GeometryPolygon {
		return domain.Boundary{}, &domain.ValidationError{Field: "geometry", Reason: "must be a polygon"}
	}
	if boundary.Status == "" {
		boundary.Status = "Unassigned"
	}
	if err := s.checkRef(ctx, colUsers, domain.EntityUser, boundary.AssignedTo, "assignee does not exist"); err != nil {
		return domain.Boundary{}, err
	}

	now := s.now()
	boundary.ID = s.idFn()
	boundary.CreatedAt = now
	boundary.UpdatedAt = now
	if err := s.insert(ctx, colBoundaries, &boundary, func(id string) { boundary.ID = id }); err != nil {
		return domain.Boundary{}, err
	}
	return boundary, nil
}

// GetBoundary returns the boundary, treating a malformed id as absent.
func (s *Store) GetBoundary(ctx context.Context, id string) (domain.Boundary, error) {
	return getByID[domain.Boundary](ctx, s, colBoundaries, domain.EntityBoundary, id)
}

// UpdateBoundaryStatus replaces the boundary's status.
func (s *Store) UpdateBoundaryStatus(ctx context.Context, id, status string) (domain.Boundary, error) {
	if strings.TrimSpace(status) == "" {
		return domain.Boundary{}, &domain.ValidationError{Field: "status", Reason: "required"}
	}
	return updateOne[domain.Boundary](ctx, s, colBoundaries, domain.EntityBoundary, id, bson.M{
		"status":    status,
		"updatedAt": s.now(),
	})
}

// AssignBoundary sets the surveyor responsible for the boundary.
func (s *Store) AssignBoundary(ctx context.Context, id, userID string) (domain.Boundary, error) {
	if err := domain.ValidateID(id); err != nil {
		return domain.Boundary{}, err
	}
	if err := domain.ValidateID(userID); err != nil {
		return domain.Boundary{}, err
	}
	if _, err := getByID[domain.Boundary](ctx, s, colBoundaries, domain.EntityBoundary, id); err != nil {
		return domain.Boundary{}, err
	}
	ok, err := s.exists(ctx, colUsers, userID)
	if err != nil {
		return domain.Boundary{}, err
	}
	if !ok {
		return domain.Boundary{}, &domain.ReferentialIntegrityError{Entity: domain.EntityUser, ID: userID, Reason: "assignee does not exist"}
	}
	return updateOne[domain.Boundary](ctx, s, colBoundaries, domain.EntityBoundary, id, bson.M{
		"assignedTo": userID,
		"updatedAt":  s.now(),
	})
}
