package catalog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segmenta-io/segmenta/internal/config"
	segerr "github.com/segmenta-io/segmenta/internal/errors"
)

const csvCatalog = `code,name,description,category,theme,data_type,operators,extra_column
AGE_25_34,Age 25-34,Adults aged 25 to 34,demographic,age,categorical,"eq,in",ignored
INCOME_HIGH,High Income,"Household income over $100k, annually",financial,income,numeric,"gt,lt,between",ignored
URBAN,Urban Resident,"Lives in an urban area
spanning multiple lines",geographic,location,boolean,eq,ignored
,No Code,missing code row,misc,,categorical,,
`

func writeTempCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestLoader(t *testing.T, path, embPath string) *Loader {
	t.Helper()
	return NewLoader(config.CatalogConfig{
		Path:           path,
		EmbeddingsPath: embPath,
	}, 3, nil)
}

func TestLoader_CSV(t *testing.T) {
	path := writeTempCatalog(t, csvCatalog)
	snap, stats, err := newTestLoader(t, path, "").Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, 1, stats.SkippedRows, "row with empty code is skipped")
	assert.Equal(t, "csv", stats.Source)

	income := snap.Get("INCOME_HIGH")
	require.NotNil(t, income)
	assert.Equal(t, "Household income over $100k, annually", income.Description)
	assert.Equal(t, DataTypeNumeric, income.DataType)
	assert.Equal(t, []string{"gt", "lt", "between"}, income.Operators)
	assert.NotEmpty(t, income.Keywords)

	urban := snap.Get("URBAN")
	require.NotNil(t, urban)
	assert.Contains(t, urban.Description, "spanning multiple lines")
}

func TestLoader_CSVMissingRequiredColumn(t *testing.T) {
	path := writeTempCatalog(t, "code,name\nX,Y\n")
	_, _, err := newTestLoader(t, path, "").Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, segerr.ErrCodeCatalogSchema, segerr.GetCode(err))
}

func TestLoader_EmptyCatalogFails(t *testing.T) {
	path := writeTempCatalog(t, "code,description\n")
	_, _, err := newTestLoader(t, path, "").Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, segerr.ErrCodeCatalogEmpty, segerr.GetCode(err))
}

func TestLoader_MissingFileFails(t *testing.T) {
	_, _, err := newTestLoader(t, filepath.Join(t.TempDir(), "absent.csv"), "").Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, segerr.ErrCodeCatalogNotFound, segerr.GetCode(err))
}

func TestLoader_SQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalog.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE variables (
		code TEXT PRIMARY KEY,
		name TEXT,
		description TEXT,
		category TEXT,
		data_type TEXT,
		operators TEXT,
		unrelated TEXT
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO variables VALUES
		('AGE_25_34', 'Age 25-34', 'Adults aged 25 to 34', 'demographic', 'categorical', 'eq,in', 'x'),
		('INCOME_HIGH', 'High Income', 'Household income over $100k', 'financial', 'numeric', 'gt,lt', 'y')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	snap, stats, err := newTestLoader(t, dbPath, "").Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "sqlite", stats.Source)
	assert.Equal(t, 2, snap.Len())
	require.NotNil(t, snap.Get("AGE_25_34"))
	assert.Equal(t, "demographic", snap.Get("AGE_25_34").Category)
	// Theme column absent in this schema; remains empty.
	assert.Empty(t, snap.Get("AGE_25_34").Theme)
}

func TestLoader_SQLiteMissingRequiredColumn(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalog.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE variables (code TEXT PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO variables VALUES ('X', 'Y')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, _, err = newTestLoader(t, dbPath, "").Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, segerr.ErrCodeCatalogSchema, segerr.GetCode(err))
}

func TestLoader_AttachesEmbeddings(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.csv")
	require.NoError(t, os.WriteFile(catalogPath, []byte(csvCatalog), 0o644))

	embPath := filepath.Join(dir, "embeddings.bin")
	require.NoError(t, WriteEmbeddings(embPath, "test-model", 3, map[string][]float32{
		"AGE_25_34":   {1, 0, 0},
		"INCOME_HIGH": {0, 1, 0},
		"UNKNOWN":     {0, 0, 1}, // not in catalog; harmless
	}))

	snap, stats, err := newTestLoader(t, catalogPath, embPath).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.WithEmbedding)
	assert.True(t, snap.Get("AGE_25_34").HasEmbedding())
	assert.False(t, snap.Get("URBAN").HasEmbedding())
	assert.Equal(t, "test-model", snap.EmbeddingModel())
}

func TestLoader_MissingEmbeddingsIsNotFatal(t *testing.T) {
	path := writeTempCatalog(t, csvCatalog)
	snap, stats, err := newTestLoader(t, path, filepath.Join(t.TempDir(), "absent.bin")).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.WithEmbedding)
	assert.False(t, snap.HasEmbeddings())
}

func TestWriteAndLoadEmbeddings_SkipsMismatchedDims(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.bin")
	require.NoError(t, WriteEmbeddings(path, "m", 3, map[string][]float32{
		"A": {1, 0, 0},
		"B": {1, 0}, // wrong length, should be skipped on load
	}))

	vectors, model, skipped, err := LoadEmbeddings(context.Background(), path, 3)
	require.NoError(t, err)
	assert.Equal(t, "m", model)
	assert.Equal(t, 1, skipped)
	assert.Contains(t, vectors, "A")
	assert.NotContains(t, vectors, "B")
}

func TestLoadEmbeddings_DeclaredDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.bin")
	require.NoError(t, WriteEmbeddings(path, "m", 4, map[string][]float32{
		"A": {1, 0, 0, 0},
	}))

	_, _, _, err := LoadEmbeddings(context.Background(), path, 3)
	require.Error(t, err)
	assert.Equal(t, segerr.ErrCodeEmbeddingsCorrupt, segerr.GetCode(err))
}
