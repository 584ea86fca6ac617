package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsDirIsValid(t *testing.T) {
	files, err := ValidateDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Contains(t, files[0], "_create_enums.sql")
}

func TestMigrationsDeclareUniqueAttributionKeys(t *testing.T) {
	checks := map[string][]string{
		"*_create_merchants.sql": {
			"CONSTRAINT ux_merchant_accounts_email UNIQUE (email)",
			"CONSTRAINT ux_merchants_domain UNIQUE (domain)",
		},
		"*_create_affiliates.sql": {
			"CONSTRAINT ux_affiliates_merchant_email UNIQUE (merchant_id, email)",
			"CONSTRAINT ux_affiliates_discount_code UNIQUE (discount_code)",
		},
		"*_create_orders.sql": {
			"CONSTRAINT ux_orders_external_order_id UNIQUE (external_order_id)",
			"commission_rate numeric NOT NULL",
			"affiliate_id uuid NULL",
			"DROP TABLE IF EXISTS orders",
		},
	}

	for pattern, wants := range checks {
		matches, err := filepath.Glob(filepath.Join("migrations", pattern))
		require.NoError(t, err)
		require.Len(t, matches, 1, pattern)

		data, err := os.ReadFile(matches[0])
		require.NoError(t, err)
		for _, want := range wants {
			assert.True(t, strings.Contains(string(data), want), "%s missing %q", pattern, want)
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := createSQLMigrationAt(dir, "Add Payout Batches!", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260304050607_add_payout_batches.sql"), path)

	_, err = createSQLMigrationAt(dir, "Add Payout Batches!", now)
	assert.Error(t, err, "same version must not overwrite")

	_, err = createSQLMigrationAt(dir, "!!!", now)
	assert.Error(t, err)

	files, err := ValidateDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"20260304050607_add_payout_batches.sql"}, files)
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	_, err := ValidateDir(dir)
	assert.Error(t, err)
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("20260301120300")
	require.NoError(t, err)
	assert.EqualValues(t, 20260301120300, v)

	for _, bad := range []string{"", "latest", "-1"} {
		_, err := parseVersion(bad)
		assert.Error(t, err, bad)
	}
}

func TestStepString(t *testing.T) {
	applied := Step{Version: 20260301120000, File: "20260301120000_create_enums.sql", State: "up", Duration: 1500 * time.Microsecond}
	assert.Equal(t, "20260301120000 up 20260301120000_create_enums.sql (2ms)", applied.String())

	pending := Step{Version: 20260301120500, File: "20260301120500_create_outbox.sql", State: "pending"}
	assert.Equal(t, "20260301120500 pending 20260301120500_create_outbox.sql", pending.String())
}

func TestNewMigratorValidates(t *testing.T) {
	_, err := NewMigrator(nil, "migrations")
	assert.Error(t, err)
}
