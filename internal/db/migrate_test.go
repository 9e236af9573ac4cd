package db

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	m := NewMigrator(nil)

	migrations, err := m.Load()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(migrations), 2)

	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}

	var all string
	for _, mig := range migrations {
		all += mig.SQL
	}
	assert.Contains(t, all, "appointments_doctor_no_overlap")
	assert.Contains(t, all, "accounts_email_lower_key")
	assert.Contains(t, all, "CREATE TABLE IF NOT EXISTS clinical_notes")
}

func TestLoadMigrations_SortsAndSkips(t *testing.T) {
	files := fstest.MapFS{
		"010_later.sql":  {Data: []byte("SELECT 10;")},
		"002_second.sql": {Data: []byte("SELECT 2;")},
		"README.md":      {Data: []byte("docs")},
		"notes.sql":      {Data: []byte("SELECT 0;")},
		"abc_bad.sql":    {Data: []byte("SELECT 0;")},
	}

	migrations, err := LoadMigrations(files)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 2, migrations[0].Version)
	assert.Equal(t, "002_second.sql", migrations[0].Name)
	assert.Equal(t, 10, migrations[1].Version)
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	files := fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 1;")},
	}

	_, err := LoadMigrations(files)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate migration version 1")
}
