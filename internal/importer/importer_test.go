package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/triplehelix/internal/database"
)

func writeCSV(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stitches.csv")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0644))
	return path
}

func TestImportStitchesCSV(t *testing.T) {
	require.NoError(t, database.ConnectSQLite(":memory:"))
	t.Cleanup(func() { database.Close() })

	csv := "tube,stitch,thread,title,content,order,qid,text,answer,l1,l2,l3\n" +
		"1,st-1,thread-A,Counting,Count to ten,0,q1,1 + 1 = ?,2,11,3,1\n" +
		"1,st-1,thread-A,Counting,Count to ten,0,q2,2 + 2 = ?,4,22,5,3\n" +
		"2,st-2,thread-B,Doubling,Double up,0,q1,3 + 3 = ?,6,33,7,5\n"
	config := DefaultImportConfig()
	config.FilePath = writeCSV(t, csv)

	result, err := ImportStitches(context.Background(), config)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalProcessed)
	assert.Equal(t, 2, result.StitchesSaved)
	assert.Equal(t, 3, result.Questions)
	assert.Empty(t, result.Errors)

	repo := database.NewContentRepository()
	stitch, err := repo.GetByID(context.Background(), "st-1")
	require.NoError(t, err)
	require.NotNil(t, stitch)
	assert.Len(t, stitch.Questions, 2)
	assert.Equal(t, "thread-A", stitch.ThreadID)
}

func TestImportStitchesBadRows(t *testing.T) {
	require.NoError(t, database.ConnectSQLite(":memory:"))
	t.Cleanup(func() { database.Close() })

	csv := "tube,stitch,thread,title,content,order,qid,text,answer,l1,l2,l3\n" +
		"9,st-1,thread-A,Counting,,0,q1,1 + 1 = ?,2,11,3,1\n" +
		"1,st-1,thread-A,Counting,,zero,q1,1 + 1 = ?,2,11,3,1\n" +
		"1,st-1,thread-A,Counting,,0,q1,1 + 1 = ?,2,11,3,1\n"
	config := DefaultImportConfig()
	config.FilePath = writeCSV(t, csv)

	result, err := ImportStitches(context.Background(), config)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, 1, result.StitchesSaved)
}
