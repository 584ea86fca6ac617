package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

var errUnknownCommand = errors.New("unknown migration command")

// Step is one applied, rolled back or inspected migration.
type Step struct {
	Version  int64
	File     string
	State    string
	Duration time.Duration
}

func (s Step) String() string {
	if s.Duration > 0 {
		return fmt.Sprintf("%d %s %s (%s)", s.Version, s.State, s.File, s.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("%d %s %s", s.Version, s.State, s.File)
}

// Migrator drives goose against one migrations directory. It never closes db.
type Migrator struct {
	provider *goose.Provider
}

func NewMigrator(db *sql.DB, dir string) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dir == "" {
		return nil, errors.New("dir is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("goose provider for %q: %w", dir, err)
	}
	return &Migrator{provider: provider}, nil
}

// Run executes up, down or status.
func (m *Migrator) Run(ctx context.Context, command string) ([]Step, error) {
	switch command {
	case "up":
		results, err := m.provider.Up(ctx)
		if err != nil {
			return nil, fmt.Errorf("goose up: %w", err)
		}
		return fromResults(results), nil
	case "down":
		result, err := m.provider.Down(ctx)
		if err != nil {
			return nil, fmt.Errorf("goose down: %w", err)
		}
		return fromResults([]*goose.MigrationResult{result}), nil
	case "status":
		statuses, err := m.provider.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("goose status: %w", err)
		}
		steps := make([]Step, 0, len(statuses))
		for _, st := range statuses {
			if st == nil || st.Source == nil {
				continue
			}
			steps = append(steps, Step{Version: st.Source.Version, File: st.Source.Path, State: string(st.State)})
		}
		return steps, nil
	}
	return nil, fmt.Errorf("%w: %q", errUnknownCommand, command)
}

// ToVersion moves the schema up or down until targetVersion is the newest applied migration.
func (m *Migrator) ToVersion(ctx context.Context, targetVersion string) ([]Step, error) {
	target, err := parseVersion(targetVersion)
	if err != nil {
		return nil, err
	}
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == target:
		return nil, nil
	case current < target:
		results, err = m.provider.UpTo(ctx, target)
	default:
		results, err = m.provider.DownTo(ctx, target)
	}
	if err != nil {
		return nil, fmt.Errorf("goose %d -> %d: %w", current, target, err)
	}
	return fromResults(results), nil
}

func parseVersion(raw string) (int64, error) {
	if raw == "" {
		return 0, errors.New("target version is required")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	return v, nil
}

func fromResults(results []*goose.MigrationResult) []Step {
	steps := make([]Step, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		steps = append(steps, Step{
			Version:  r.Source.Version,
			File:     r.Source.Path,
			State:    r.Direction,
			Duration: r.Duration,
		})
	}
	return steps
}
