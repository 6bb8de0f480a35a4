package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/pkg/domain"
)

// The tests in this file need a reachable server; set FIELDOPS_TEST_MONGO_URI
// (e.g. mongodb://localhost:27017) to run them.
func testStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("FIELDOPS_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("FIELDOPS_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Connect(ctx, uri, "fieldops_test_"+domain.NewID()[:12])
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.db.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestConnectRefusesUnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, "mongodb://127.0.0.1:1", "fieldops_test")
	require.Error(t, err)
	assert.True(t, domain.IsConnection(err))
}

func TestUserLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	boss, err := s.CreateUser(ctx, domain.User{Username: "Boss", PasswordHash: "x", Role: domain.RoleSupervisor})
	require.NoError(t, err)
	require.True(t, domain.IsValidID(boss.ID))

	_, err = s.CreateUser(ctx, domain.User{Username: "boss", PasswordHash: "x", Role: domain.RoleSupervisor})
	assert.True(t, domain.IsValidation(err), "username uniqueness is case-insensitive")

	got, err := s.GetUserByUsername(ctx, "BOSS")
	require.NoError(t, err)
	assert.Equal(t, boss.ID, got.ID)

	_, err = s.GetUser(ctx, "not-an-id")
	assert.True(t, domain.IsNotFound(err))

	loc := domain.NewPoint(77.5946, 12.9716)
	updated, err := s.UpdateUserLocation(ctx, boss.ID, loc)
	require.NoError(t, err)
	require.NotNil(t, updated.CurrentLocation)
	p, ok := updated.CurrentLocation.Point()
	require.True(t, ok)
	assert.Equal(t, 77.5946, p.Lng())
}

func TestTaskStatusAudit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	boss, err := s.CreateUser(ctx, domain.User{Username: "boss", PasswordHash: "x", Role: domain.RoleSupervisor})
	require.NoError(t, err)
	task, err := s.CreateTask(ctx, domain.Task{Title: "inspect", CreatedBy: boss.ID})
	require.NoError(t, err)
	require.Equal(t, domain.TaskUnassigned, task.Status)

	updated, err := s.UpdateTaskStatus(ctx, task.ID, domain.TaskInProgress, boss.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskInProgress, updated.Status)

	trail, err := s.ListTaskUpdates(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, domain.TaskUnassigned, trail[0].OldStatus)
	assert.Equal(t, domain.TaskInProgress, trail[0].NewStatus)
	assert.Equal(t, "Status updated to In Progress", trail[0].Comment)

	assigned, err := s.AssignTask(ctx, task.ID, boss.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskAssigned, assigned.Status)

	trail, err = s.ListTaskUpdates(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 1, "assignment is not audited")
}

func TestBulkUpdateRejectsMalformedIDs(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	boss, err := s.CreateUser(ctx, domain.User{Username: "boss", PasswordHash: "x", Role: domain.RoleSupervisor})
	require.NoError(t, err)
	task, err := s.CreateTask(ctx, domain.Task{Title: "t", CreatedBy: boss.ID})
	require.NoError(t, err)

	n, err := s.BulkUpdateTaskStatus(ctx, []string{task.ID, "bad"}, domain.TaskCompleted, boss.ID)
	assert.True(t, domain.IsValidation(err))
	assert.Zero(t, n)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskUnassigned, got.Status)

	n, err = s.BulkUpdateTaskStatus(ctx, []string{task.ID, domain.NewID()}, domain.TaskCompleted, boss.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "absent ids are skipped")
}

func TestGeospatialQueries(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mkUser := func(name string, lng, lat float64) domain.User {
		g := domain.NewPoint(lng, lat)
		u, err := s.CreateUser(ctx, domain.User{
			Username: name, PasswordHash: "x", Role: domain.RoleField,
			CurrentLocation: &g,
		})
		require.NoError(t, err)
		return u
	}
	near := mkUser("near", 0.001, 0)
	mkUser("far", 0.5, 0)

	users, err := s.UsersNearLocation(ctx, 0, 0, 500)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, near.ID, users[0].ID)

	poly, err := domain.NewPolygon([][]domain.Position{{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}}})
	require.NoError(t, err)
	b, err := s.CreateBoundary(ctx, domain.Boundary{Name: "sector", Geometry: poly})
	require.NoError(t, err)

	in, err := s.CreateFeature(ctx, domain.Feature{Name: "in", FeaType: "pipe", Geometry: domain.NewPoint(2, 2), CreatedBy: near.ID})
	require.NoError(t, err)
	_, err = s.CreateFeature(ctx, domain.Feature{Name: "out", FeaType: "pipe", Geometry: domain.NewPoint(9, 9), CreatedBy: near.ID})
	require.NoError(t, err)

	features, err := s.FeaturesInBoundary(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, in.ID, features[0].ID)
}

func TestStatsAndSearch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	boss, err := s.CreateUser(ctx, domain.User{Username: "boss", PasswordHash: "x", Role: domain.RoleSupervisor})
	require.NoError(t, err)

	for _, typ := range []string{"pipe", "pipe", "chamber"} {
		_, err := s.CreateFeature(ctx, domain.Feature{Name: "Valve " + typ, FeaType: typ, Geometry: domain.NewPoint(0, 0), CreatedBy: boss.ID})
		require.NoError(t, err)
	}

	stats, err := s.FeatureStatsByType(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, domain.FeatureTypeCount{FeaType: "chamber", Count: 1}, stats[0])
	assert.Equal(t, domain.FeatureTypeCount{FeaType: "pipe", Count: 2}, stats[1])

	features, err := s.SearchFeatures(ctx, "valve")
	require.NoError(t, err)
	assert.Len(t, features, 3)

	_, err = s.SearchFeatures(ctx, "  ")
	assert.True(t, domain.IsValidation(err))

	_, err = s.CreateTask(ctx, domain.Task{Title: "check valves", CreatedBy: boss.ID, AssignedTo: &boss.ID})
	require.NoError(t, err)

	taskStats, err := s.TaskStatsByUser(ctx, boss.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, taskStats.Total)
	assert.Equal(t, 1, taskStats.ByStatus[domain.TaskAssigned])
}

func TestDeleteFeatureSilentOnAbsent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	deleted, err := s.DeleteFeature(ctx, "not-an-id")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = s.DeleteFeature(ctx, domain.NewID())
	require.NoError(t, err)
	assert.False(t, deleted)
}
