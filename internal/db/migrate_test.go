package db

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "postgres scheme", in: "postgres://u:p@localhost:5432/db", want: "pgx5://u:p@localhost:5432/db"},
		{name: "postgresql scheme", in: "postgresql://u@host/db?sslmode=disable", want: "pgx5://u@host/db?sslmode=disable"},
		{name: "already pgx5", in: "pgx5://u@host/db", want: "pgx5://u@host/db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MigrationURL(tt.in))
		})
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrations, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrations, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Equal(t, len(ups), len(downs))
}
