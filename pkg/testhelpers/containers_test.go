//go:build integration

package testhelpers

import (
	"context"
	"testing"
)

func TestEngineDB_MigrationsApplied(t *testing.T) {
	engineDB := GetEngineDB(t)

	ctx := context.Background()

	tables := []string{
		"risk_missions",
		"risk_indicators",
		"risk_indicator_values",
		"risk_events",
		"risk_fmea_items",
		"risk_fusion_rules",
		"risk_datasets",
		"risk_fta_nodes",
		"risk_fta_edges",
		"risk_model_configs",
		"risk_result_snapshots",
	}

	for _, table := range tables {
		var exists bool
		err := engineDB.DB.Pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("failed to check table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("expected table %s to exist", table)
		}
	}
}

func TestRedisClient_Ping(t *testing.T) {
	client := GetRedisClient(t)

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}
