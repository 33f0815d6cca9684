//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/database"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/testhelpers"
)

// repoTestContext holds test dependencies for repository tests.
type repoTestContext struct {
	t         *testing.T
	engineDB  *testhelpers.EngineDB
	ctx       context.Context
	missionID int64
	release   func()
}

// setupRepoTest acquires a scoped connection and creates a fresh mission.
// Rows created by the test are removed through the mission's cascading delete.
func setupRepoTest(t *testing.T) *repoTestContext {
	engineDB := testhelpers.GetEngineDB(t)
	ctx, release := engineDB.Scope(t)

	tc := &repoTestContext{
		t:        t,
		engineDB: engineDB,
		ctx:      ctx,
		release:  release,
	}

	mission := &models.Mission{Name: t.Name(), Description: "repository test"}
	if err := NewMissionRepository().Create(ctx, mission); err != nil {
		release()
		t.Fatalf("failed to create test mission: %v", err)
	}
	tc.missionID = mission.ID

	t.Cleanup(tc.cleanup)
	return tc
}

func (tc *repoTestContext) cleanup() {
	tc.t.Helper()
	if scope, ok := database.GetScope(tc.ctx); ok {
		_, _ = scope.Conn.Exec(tc.ctx, "DELETE FROM risk_missions WHERE id = $1", tc.missionID)
	}
	tc.release()
}
