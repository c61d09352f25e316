package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"fknsrs.biz/p/ytnotes/internal/ctxlogger"
)

//go:embed sql/*.sql
var migrationFS embed.FS

type migration struct {
	version int
	name    string
	up      string
	down    string
}

func loadMigrations() ([]migration, error) {
	entries, err := migrationFS.ReadDir("sql")
	if err != nil {
		return nil, fmt.Errorf("migrate.loadMigrations: could not read migration directory: %w", err)
	}

	m := make(map[int]*migration)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		// file names look like 0001_init_up.sql / 0001_init_down.sql
		parts := strings.SplitN(name, "_", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("migrate.loadMigrations: could not parse migration file name %q", name)
		}

		version, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("migrate.loadMigrations: could not parse version from file name %q: %w", name, err)
		}

		content, err := migrationFS.ReadFile(path.Join("sql", name))
		if err != nil {
			return nil, fmt.Errorf("migrate.loadMigrations: could not read migration file %q: %w", name, err)
		}

		if m[version] == nil {
			m[version] = &migration{version: version}
		}

		switch {
		case strings.HasSuffix(name, "_up.sql"):
			m[version].name = strings.TrimSuffix(parts[1], "_up.sql")
			m[version].up = string(content)
		case strings.HasSuffix(name, "_down.sql"):
			m[version].down = string(content)
		default:
			return nil, fmt.Errorf("migrate.loadMigrations: migration file %q is neither _up nor _down", name)
		}
	}

	var a []migration
	for _, e := range m {
		if e.up == "" {
			return nil, fmt.Errorf("migrate.loadMigrations: migration version %d has no up script", e.version)
		}

		a = append(a, *e)
	}

	sort.Slice(a, func(i, j int) bool { return a[i].version < a[j].version })

	return a, nil
}

func getVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "pragma user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("migrate.getVersion: could not read user_version: %w", err)
	}

	return version, nil
}

// Up applies all pending migrations. The current schema version is tracked in
// the sqlite user_version pragma; each migration runs in its own transaction.
func Up(ctx context.Context, db *sql.DB) error {
	l := ctxlogger.GetLogger(ctx)

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("migrate.Up: %w", err)
	}

	current, err := getVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate.Up: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		l.WithField("migration.version", m.version).WithField("migration.name", m.name).Info("applying migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migrate.Up: could not open transaction for version %d: %w", m.version, err)
		}

		if _, err := tx.ExecContext(ctx, m.up); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate.Up: could not apply version %d: %w", m.version, err)
		}

		// pragma values can't be bound as parameters
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("pragma user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate.Up: could not record version %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate.Up: could not commit version %d: %w", m.version, err)
		}
	}

	return nil
}
