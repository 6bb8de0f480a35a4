package mongo

import (
	"context"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"fieldops/pkg/domain"
)

// UsersNearLocation returns users whose current location lies within
// maxDistanceMeters of the center (inclusive), nearest first. The 2dsphere
// index orders results by distance.
func (s *Store) UsersNearLocation(ctx context.Context, lng, lat, maxDistanceMeters float64) ([]domain.User, error) {
	filter := bson.M{
		"currentLocation": bson.M{
			"$nearSphere": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{lng, lat},
				},
				"$maxDistance": maxDistanceMeters,
			},
		},
	}
	cur, err := s.col(colUsers).Find(ctx, filter)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "find users", Err: err}
	}
	out := make([]domain.User, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, &domain.PersistenceError{Op: "decode users", Err: err}
	}
	return out, nil
}

// FeaturesInBoundary returns features whose whole geometry falls inside the
// boundary polygon, ordered by id.
func (s *Store) FeaturesInBoundary(ctx context.Context, boundaryID string) ([]domain.Feature, error) {
	b, err := s.boundaryPolygon(ctx, boundaryID)
	if err != nil {
		return nil, err
	}
	return findAll[domain.Feature](ctx, s, colFeatures, bson.M{
		"geometry": bson.M{"$geoWithin": bson.M{"$geometry": b.Geometry}},
	})
}

// TasksInBoundary returns tasks whose location falls inside the boundary
// polygon, ordered by id. Tasks without a location never match.
func (s *Store) TasksInBoundary(ctx context.Context, boundaryID string) ([]domain.Task, error) {
	b, err := s.boundaryPolygon(ctx, boundaryID)
	if err != nil {
		return nil, err
	}
	return findAll[domain.Task](ctx, s, colTasks, bson.M{
		"location": bson.M{"$geoWithin": bson.M{"$geometry": b.Geometry}},
	})
}

func (s *Store) boundaryPolygon(ctx context.Context, boundaryID string) (domain.Boundary, error) {
	b, err := getByID[domain.Boundary](ctx, s, colBoundaries, domain.EntityBoundary, boundaryID)
	if err != nil {
		return domain.Boundary{}, err
	}
	if b.Geometry.Type() != domain.GeometryPolygon {
		return domain.Boundary{}, &domain.ValidationError{Field: "geometry", Reason: "boundary geometry is not a polygon"}
	}
	return b, nil
}

// TaskStatsByUser counts the user's assigned tasks grouped by status.
func (s *Store) TaskStatsByUser(ctx context.Context, userID string) (domain.TaskStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"assignedTo": userID}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := s.col(colTasks).Aggregate(ctx, pipeline)
	if err != nil {
		return domain.TaskStats{}, &domain.PersistenceError{Op: "aggregate tasks", Err: err}
	}
	var rows []struct {
		Status domain.TaskStatus `bson:"_id"`
		Count  int               `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return domain.TaskStats{}, &domain.PersistenceError{Op: "decode task stats", Err: err}
	}
	stats := domain.TaskStats{ByStatus: make(map[domain.TaskStatus]int)}
	for _, r := range rows {
		stats.Total += r.Count
		stats.ByStatus[r.Status] = r.Count
	}
	return stats, nil
}

// FeatureStatsByType counts features per type, ordered by type.
func (s *Store) FeatureStatsByType(ctx context.Context) ([]domain.FeatureTypeCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$feaType", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	cur, err := s.col(colFeatures).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "aggregate features", Err: err}
	}
	out := make([]domain.FeatureTypeCount, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, &domain.PersistenceError{Op: "decode feature stats", Err: err}
	}
	return out, nil
}

// SearchFeatures matches the query case-insensitively against name, number,
// type, and specific type.
func (s *Store) SearchFeatures(ctx context.Context, query string) ([]domain.Feature, error) {
	re, err := searchRegex(query)
	if err != nil {
		return nil, err
	}
	return findAll[domain.Feature](ctx, s, colFeatures, bson.M{"$or": bson.A{
		bson.M{"name": re},
		bson.M{"feaNo": re},
		bson.M{"feaType": re},
		bson.M{"specificType": re},
	}})
}

// SearchTasks matches the query case-insensitively against title and
// description.
func (s *Store) SearchTasks(ctx context.Context, query string) ([]domain.Task, error) {
	re, err := searchRegex(query)
	if err != nil {
		return nil, err
	}
	return findAll[domain.Task](ctx, s, colTasks, bson.M{"$or": bson.A{
		bson.M{"title": re},
		bson.M{"description": re},
	}})
}

// searchRegex builds a case-insensitive substring matcher with the query
// quoted, so user input is never interpreted as a pattern.
func searchRegex(query string) (primitive.Regex, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return primitive.Regex{}, &domain.ValidationError{Field: "query", Reason: "required"}
	}
	return primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}, nil
}

// BulkUpdateTaskStatus applies one status to many tasks. Id format is
// checked for the whole batch before anything mutates; absent ids are then
// skipped while each existing task gets an ordinary audited status update.
func (s *Store) BulkUpdateTaskStatus(ctx context.Context, ids []string, status domain.TaskStatus, userID string) (int, error) {
	if !status.Valid() {
		return 0, &domain.ValidationError{Field: "status", Reason: "invalid task status"}
	}
	if err := domain.ValidateID(userID); err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := domain.ValidateID(id); err != nil {
			return 0, err
		}
	}

	count := 0
	for _, id := range ids {
		_, err := s.applyStatus(ctx, id, status, userID)
		if domain.IsNotFound(err) {
			continue
		}
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
