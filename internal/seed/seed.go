// Package seed provisions a supervisor account and a small demo dataset so a
// fresh install is immediately usable.
package seed

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"fieldops/pkg/domain"
)

const (
	// SupervisorUsername is the bootstrap account created by Run.
	SupervisorUsername = "supervisor"
	defaultPassword    = "changeme-now"
)

// Run creates the bootstrap supervisor and demo records. It is idempotent:
// when the supervisor account already exists nothing is written.
func Run(ctx context.Context, store domain.Store, log *zap.Logger) error {
	if _, err := store.GetUserByUsername(ctx, SupervisorUsername); err == nil {
		log.Info("seed skipped, supervisor account already present")
		return nil
	} else if !domain.IsNotFound(err) {
		return fmt.Errorf("probe supervisor account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	supervisor, err := store.CreateUser(ctx, domain.User{
		Username:     SupervisorUsername,
		PasswordHash: string(hash),
		Role:         domain.RoleSupervisor,
	})
	if err != nil {
		return fmt.Errorf("create supervisor: %w", err)
	}
	log.Info("seeded supervisor account",
		zap.String("username", SupervisorUsername), zap.String("id", supervisor.ID))

	team, err := store.CreateTeam(ctx, domain.Team{Name: "Survey Crew A", CreatedBy: supervisor.ID})
	if err != nil {
		return fmt.Errorf("create demo team: %w", err)
	}
	if _, err := store.UpdateTeamStatus(ctx, team.ID, domain.TeamApproved, &supervisor.ID); err != nil {
		return fmt.Errorf("approve demo team: %w", err)
	}

	workerHash, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	loc := domain.NewPoint(77.5946, 12.9716)
	worker, err := store.CreateUser(ctx, domain.User{
		Username:        "field-demo",
		PasswordHash:    string(workerHash),
		Role:            domain.RoleField,
		TeamID:          &team.ID,
		CurrentLocation: &loc,
	})
	if err != nil {
		return fmt.Errorf("create demo worker: %w", err)
	}

	sector, err := domain.NewPolygon([][]domain.Position{{
		{77.59, 12.96}, {77.60, 12.96}, {77.60, 12.98}, {77.59, 12.98}, {77.59, 12.96},
	}})
	if err != nil {
		return fmt.Errorf("build demo polygon: %w", err)
	}
	boundary, err := store.CreateBoundary(ctx, domain.Boundary{Name: "Demo Sector", Geometry: sector})
	if err != nil {
		return fmt.Errorf("create demo boundary: %w", err)
	}

	feature, err := store.CreateFeature(ctx, domain.Feature{
		Name:       "Junction Chamber 1",
		FeaNo:      "JC-001",
		FeaType:    "chamber",
		Geometry:   domain.NewPoint(77.595, 12.97),
		BoundaryID: &boundary.ID,
		CreatedBy:  supervisor.ID,
	})
	if err != nil {
		return fmt.Errorf("create demo feature: %w", err)
	}

	task, err := store.CreateTask(ctx, domain.Task{
		Title:       "Inspect junction chamber",
		Description: "Initial condition survey of JC-001",
		Priority:    domain.PriorityHigh,
		CreatedBy:   supervisor.ID,
		AssignedTo:  &worker.ID,
		Location:    geomPtr(domain.NewPoint(77.595, 12.97)),
		BoundaryID:  &boundary.ID,
		FeatureID:   &feature.ID,
	})
	if err != nil {
		return fmt.Errorf("create demo task: %w", err)
	}
	if _, err := store.UpdateTaskStatus(ctx, task.ID, domain.TaskInProgress, worker.ID); err != nil {
		return fmt.Errorf("progress demo task: %w", err)
	}

	log.Info("seeded demo dataset",
		zap.String("team", team.ID), zap.String("boundary", boundary.ID), zap.String("task", task.ID))
	return nil
}

func geomPtr(g domain.Geometry) *domain.Geometry { return &g }
