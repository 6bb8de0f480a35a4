package memory

import (
	"context"
	"sort"
	"strings"

	"fieldops/pkg/domain"
	"fieldops/pkg/geo"
)

// UsersNearLocation returns users whose current location lies within
// maxDistanceMeters of the center (inclusive), nearest first. Distance is
// haversine on the shared mean Earth radius, matching the semantics of the
// document backend's geospatial index.
func (s *Store) UsersNearLocation(_ context.Context, lng, lat, maxDistanceMeters float64) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	center := domain.Position{lng, lat}
	type hit struct {
		user domain.User
		dist float64
	}
	hits := make([]hit, 0)
	for _, u := range s.state.users {
		if u.CurrentLocation == nil {
			continue
		}
		p, ok := u.CurrentLocation.Point()
		if !ok {
			continue
		}
		d := geo.Distance(center, p)
		if d <= maxDistanceMeters {
			hits = append(hits, hit{user: cloneUser(u), dist: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].user.ID < hits[j].user.ID
	})
	out := make([]domain.User, len(hits))
	for i, h := range hits {
		out[i] = h.user
	}
	return out, nil
}

// FeaturesInBoundary returns features whose whole geometry falls inside the
// boundary polygon, ordered by id.
func (s *Store) FeaturesInBoundary(_ context.Context, boundaryID string) ([]domain.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rings, err := s.boundaryRings(boundaryID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Feature, 0)
	for _, f := range s.state.features {
		if geo.ContainsGeometry(rings, f.Geometry) {
			out = append(out, cloneFeature(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// TasksInBoundary returns tasks whose location falls inside the boundary
// polygon, ordered by id. Tasks without a location never match.
func (s *Store) TasksInBoundary(_ context.Context, boundaryID string) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rings, err := s.boundaryRings(boundaryID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0)
	for _, t := range s.state.tasks {
		if t.Location == nil {
			continue
		}
		p, ok := t.Location.Point()
		if !ok {
			continue
		}
		if geo.ContainsPoint(rings, p) {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// boundaryRings resolves a boundary's polygon rings. Caller holds the lock.
func (s *Store) boundaryRings(boundaryID string) ([][]domain.Position, error) {
	b, ok := s.state.boundaries[boundaryID]
	if !domain.IsValidID(boundaryID) || !ok {
		return nil, &domain.NotFoundError{Entity: domain.EntityBoundary, ID: boundaryID}
	}
	rings, ok := b.Geometry.Polygon()
	if !ok {
		return nil, &domain.ValidationError{Field: "geometry", Reason: "boundary geometry is not a polygon"}
	}
	return rings, nil
}

// TaskStatsByUser counts the user's assigned tasks grouped by status.
func (s *Store) TaskStatsByUser(_ context.Context, userID string) (domain.TaskStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.TaskStats{ByStatus: make(map[domain.TaskStatus]int)}
	for _, t := range s.state.tasks {
		if t.AssignedTo != nil && *t.AssignedTo == userID {
			stats.Total++
			stats.ByStatus[t.Status]++
		}
	}
	return stats, nil
}

// FeatureStatsByType counts features per type, ordered by type.
func (s *Store) FeatureStatsByType(_ context.Context) ([]domain.FeatureTypeCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, f := range s.state.features {
		counts[f.FeaType]++
	}
	out := make([]domain.FeatureTypeCount, 0, len(counts))
	for typ, n := range counts {
		out = append(out, domain.FeatureTypeCount{FeaType: typ, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FeaType < out[j].FeaType })
	return out, nil
}

// SearchFeatures matches the query case-insensitively against name, number,
// type, and specific type.
func (s *Store) SearchFeatures(_ context.Context, query string) ([]domain.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, err := foldQuery(query)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Feature, 0)
	for _, f := range s.state.features {
		if containsFold(f.Name, q) || containsFold(f.FeaNo, q) || containsFold(f.FeaType, q) || containsFold(f.SpecificType, q) {
			out = append(out, cloneFeature(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SearchTasks matches the query case-insensitively against title and
// description.
func (s *Store) SearchTasks(_ context.Context, query string) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, err := foldQuery(query)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0)
	for _, t := range s.state.tasks {
		if containsFold(t.Title, q) || containsFold(t.Description, q) {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// BulkUpdateTaskStatus applies one status to many tasks. Id format is
// checked for the whole batch before anything mutates; absent ids are then
// skipped while each existing task gets an ordinary audited status update.
func (s *Store) BulkUpdateTaskStatus(_ context.Context, ids []string, status domain.TaskStatus, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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
		if _, ok := s.state.tasks[id]; !ok {
			continue
		}
		if _, err := s.applyStatus(id, status, userID); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func foldQuery(query string) (string, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return "", &domain.ValidationError{Field: "query", Reason: "required"}
	}
	return q, nil
}

func containsFold(haystack, foldedNeedle string) bool {
	return strings.Contains(strings.ToLower(haystack), foldedNeedle)
}
