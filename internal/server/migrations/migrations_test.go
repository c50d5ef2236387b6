package migrations

import (
	"io/fs"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_SameVersionsPerDialect(t *testing.T) {
	pg, err := fs.Glob(Migrations, path.Join(PostgresDir, "*.sql"))
	require.NoError(t, err)
	lite, err := fs.Glob(Migrations, path.Join(SQLiteDir, "*.sql"))
	require.NoError(t, err)

	require.NotEmpty(t, pg)
	require.Len(t, lite, len(pg))
	for i := range pg {
		assert.Equal(t, path.Base(pg[i]), path.Base(lite[i]))
	}
}
