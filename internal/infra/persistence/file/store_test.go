package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/pkg/domain"
)

func openStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir)
	require.NoError(t, err)
	return s
}

func TestOpenCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s := openStore(t, dir)
	assert.Equal(t, dir, s.Dir())
	assert.Equal(t, domain.DriverFile, s.Driver())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestMutationsPersistAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openStore(t, dir)
	boss, err := s.CreateUser(ctx, domain.User{Username: "boss", PasswordHash: "x", Role: domain.RoleSupervisor})
	require.NoError(t, err)
	task, err := s.CreateTask(ctx, domain.Task{Title: "inspect", CreatedBy: boss.ID})
	require.NoError(t, err)
	_, err = s.UpdateTaskStatus(ctx, task.ID, domain.TaskInProgress, boss.ID)
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	reopened := openStore(t, dir)
	got, err := reopened.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskInProgress, got.Status)

	trail, err := reopened.ListTaskUpdates(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "Status updated to In Progress", trail[0].Comment)

	user, err := reopened.GetUserByUsername(ctx, "BOSS")
	require.NoError(t, err)
	assert.Equal(t, boss.ID, user.ID)
}

func TestCollectionFileShape(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openStore(t, dir)
	boss, err := s.CreateUser(ctx, domain.User{Username: "boss", PasswordHash: "x", Role: domain.RoleSupervisor})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "users.json"))
	require.NoError(t, err)

	var doc struct {
		Users []domain.User `json:"users"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Len(t, doc.Users, 1)
	assert.Equal(t, boss.ID, doc.Users[0].ID)

	// Only the touched collection is written.
	_, err = os.Stat(filepath.Join(dir, "tasks.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestStatusUpdateTouchesTasksAndUpdates(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openStore(t, dir)
	boss, err := s.CreateUser(ctx, domain.User{Username: "boss", PasswordHash: "x", Role: domain.RoleSupervisor})
	require.NoError(t, err)
	task, err := s.CreateTask(ctx, domain.Task{Title: "t", CreatedBy: boss.ID})
	require.NoError(t, err)
	_, err = s.UpdateTaskStatus(ctx, task.ID, domain.TaskCompleted, boss.ID)
	require.NoError(t, err)

	for _, name := range []string{"tasks.json", "taskUpdates.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestDeletePersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openStore(t, dir)
	boss, err := s.CreateUser(ctx, domain.User{Username: "boss", PasswordHash: "x", Role: domain.RoleSupervisor})
	require.NoError(t, err)
	f, err := s.CreateFeature(ctx, domain.Feature{Name: "pipe", FeaType: "pipe", Geometry: domain.NewPoint(1, 1), CreatedBy: boss.ID})
	require.NoError(t, err)

	deleted, err := s.DeleteFeature(ctx, f.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	reopened := openStore(t, dir)
	_, err = reopened.GetFeature(ctx, f.ID)
	assert.True(t, domain.IsNotFound(err))
}

func TestFailedValidationWritesNothing(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openStore(t, dir)
	_, err := s.CreateUser(ctx, domain.User{Username: "", PasswordHash: "x", Role: domain.RoleSupervisor})
	require.True(t, domain.IsValidation(err))

	_, statErr := os.Stat(filepath.Join(dir, "users.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestGeometrySurvivesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openStore(t, dir)
	boss, err := s.CreateUser(ctx, domain.User{Username: "boss", PasswordHash: "x", Role: domain.RoleSupervisor})
	require.NoError(t, err)

	poly, err := domain.NewPolygon([][]domain.Position{{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}}})
	require.NoError(t, err)
	b, err := s.CreateBoundary(ctx, domain.Boundary{Name: "sector", Geometry: poly})
	require.NoError(t, err)
	inside, err := s.CreateFeature(ctx, domain.Feature{Name: "in", FeaType: "pipe", Geometry: domain.NewPoint(2, 2), CreatedBy: boss.ID})
	require.NoError(t, err)

	reopened := openStore(t, dir)
	features, err := reopened.FeaturesInBoundary(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, inside.ID, features[0].ID)
}

func TestBulkUpdatePersistsAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openStore(t, dir)
	boss, err := s.CreateUser(ctx, domain.User{Username: "boss", PasswordHash: "x", Role: domain.RoleSupervisor})
	require.NoError(t, err)
	task, err := s.CreateTask(ctx, domain.Task{Title: "t", CreatedBy: boss.ID})
	require.NoError(t, err)

	n, err := s.BulkUpdateTaskStatus(ctx, []string{task.ID, "bad"}, domain.TaskCompleted, boss.ID)
	require.True(t, domain.IsValidation(err))
	assert.Zero(t, n)

	reopened := openStore(t, dir)
	got, err := reopened.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskUnassigned, got.Status)

	n, err = s.BulkUpdateTaskStatus(ctx, []string{task.ID}, domain.TaskCompleted, boss.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reopened = openStore(t, dir)
	got, err = reopened.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, got.Status)
}

func TestFailedPersistRollsBackMemory(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openStore(t, dir)
	boss, err := s.CreateUser(ctx, domain.User{Username: "boss", PasswordHash: "x", Role: domain.RoleSupervisor})
	require.NoError(t, err)

	// Replace the collection file with a directory so the rename inside
	// persist fails deterministically.
	usersPath := filepath.Join(dir, "users.json")
	require.NoError(t, os.Remove(usersPath))
	require.NoError(t, os.Mkdir(usersPath, 0o750))

	_, err = s.CreateUser(ctx, domain.User{Username: "worker", PasswordHash: "x", Role: domain.RoleField})
	require.Error(t, err)
	assert.True(t, domain.IsPersistence(err))

	// The failed insert must not be visible in memory, and the earlier
	// record must survive the rollback.
	_, err = s.GetUserByUsername(ctx, "worker")
	assert.True(t, domain.IsNotFound(err))
	got, err := s.GetUserByUsername(ctx, "boss")
	require.NoError(t, err)
	assert.Equal(t, boss.ID, got.ID)
}

func TestFailedPersistRollsBackStatusAndAudit(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := openStore(t, dir)
	boss, err := s.CreateUser(ctx, domain.User{Username: "boss", PasswordHash: "x", Role: domain.RoleSupervisor})
	require.NoError(t, err)
	task, err := s.CreateTask(ctx, domain.Task{Title: "t", CreatedBy: boss.ID})
	require.NoError(t, err)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "taskUpdates.json"), 0o750))

	_, err = s.UpdateTaskStatus(ctx, task.ID, domain.TaskCompleted, boss.ID)
	require.Error(t, err)
	assert.True(t, domain.IsPersistence(err))

	// Status and audit trail roll back together.
	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskUnassigned, got.Status)
	trail, err := s.ListTaskUpdates(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, trail)
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"), []byte("{not json"), 0o600))

	_, err := Open(dir)
	require.Error(t, err)
	assert.True(t, domain.IsConnection(err))
}
