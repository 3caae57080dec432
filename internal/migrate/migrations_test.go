package migrate_test

import (
	"context"
	"testing"

	"pecpulse/internal/db"
	"pecpulse/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()

	applied, latest, err := migrate.Version(ctx, conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if applied != 0 || latest < 1 {
		t.Fatalf("fresh db: applied=%d latest=%d", applied, latest)
	}
	for i := 0; i < 2; i++ {
		if err := migrate.MigrateContext(ctx, conn); err != nil {
			t.Fatalf("migrate run %d: %v", i, err)
		}
	}
	applied, latest, err = migrate.Version(ctx, conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if applied != latest {
		t.Fatalf("applied=%d latest=%d", applied, latest)
	}
	var n int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM meetings`).Scan(&n); err != nil {
		t.Fatalf("meetings table: %v", err)
	}
}
