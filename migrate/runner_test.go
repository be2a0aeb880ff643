package migrate

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	"github.com/devmarvs/yaade/db"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"sql/0001_init.up.sql":     {Data: []byte("CREATE TABLE widgets (id TEXT PRIMARY KEY);")},
		"sql/0001_init.down.sql":   {Data: []byte("DROP TABLE widgets;")},
		"sql/0002_names.up.sql":    {Data: []byte("ALTER TABLE widgets ADD COLUMN name TEXT;\nCREATE INDEX widgets_name_idx ON widgets (name);")},
		"sql/0002_names.down.sql":  {Data: []byte("DROP INDEX widgets_name_idx;\nALTER TABLE widgets DROP COLUMN name;")},
		"sql/README.md":            {Data: []byte("ignored")},
		"sql/0003_broken.down.sql": {Data: []byte("-- only down")},
	}
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(db.DriverSQLite, "file:"+t.TempDir()+"/migrate.db", db.Options{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestListMigrations(t *testing.T) {
	migrations, err := New(nil, "", testFS(), "sql").List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "init" || migrations[0].UpPath != "sql/0001_init.up.sql" {
		t.Fatalf("unexpected first migration: %+v", migrations[0])
	}
	if migrations[2].UpPath != "" {
		t.Fatalf("expected missing up path for version 3")
	}
}

func TestPlanWithoutDB(t *testing.T) {
	plan, err := New(nil, "", testFS(), "sql").Plan(context.Background())
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	for _, entry := range plan {
		if entry.Applied {
			t.Fatalf("expected pending entry, got %+v", entry)
		}
	}
}

func TestUpWithoutDB(t *testing.T) {
	if _, err := New(nil, "", testFS(), "sql").Up(context.Background()); err != ErrNoDatabase {
		t.Fatalf("expected ErrNoDatabase, got %v", err)
	}
}

func TestUpDownSQLite(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	fsys := testFS()
	delete(fsys, "sql/0003_broken.down.sql")
	runner := New(conn, db.DriverSQLite, fsys, "sql")

	applied, err := runner.Up(ctx)
	if err != nil {
		t.Fatalf("up: %v", err)
	}
	if applied != 2 {
		t.Fatalf("expected 2 applied, got %d", applied)
	}
	if _, err := conn.ExecContext(ctx, "INSERT INTO widgets (id, name) VALUES ('a', 'b')"); err != nil {
		t.Fatalf("expected migrated schema: %v", err)
	}

	again, err := runner.Up(ctx)
	if err != nil || again != 0 {
		t.Fatalf("expected idempotent up, got %d, %v", again, err)
	}

	plan, err := runner.Plan(ctx)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !plan[0].Applied || !plan[1].Applied {
		t.Fatalf("expected both applied: %+v", plan)
	}

	rolled, err := runner.Down(ctx, 1)
	if err != nil || rolled != 1 {
		t.Fatalf("down: %d, %v", rolled, err)
	}
	plan, _ = runner.Plan(ctx)
	if !plan[0].Applied || plan[1].Applied {
		t.Fatalf("expected only the first applied: %+v", plan)
	}
}

func TestUpStopsAtMissingUpFile(t *testing.T) {
	runner := New(openSQLite(t), db.DriverSQLite, testFS(), "sql")
	applied, err := runner.Up(context.Background())
	if err == nil {
		t.Fatalf("expected error for version without up file")
	}
	if applied != 2 {
		t.Fatalf("expected earlier migrations applied, got %d", applied)
	}
}

func TestFailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	fsys := fstest.MapFS{
		"0001_bad.up.sql": {Data: []byte("CREATE TABLE ok_table (id TEXT); CREATE TABLE broken (")},
	}
	runner := New(conn, db.DriverSQLite, fsys, ".")
	if _, err := runner.Up(ctx); err == nil {
		t.Fatalf("expected syntax error")
	}
	plan, err := runner.Plan(ctx)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan[0].Applied {
		t.Fatalf("failed migration must not be recorded")
	}
}
