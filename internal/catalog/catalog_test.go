package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navtrace/recfix/internal/classify"
	"github.com/navtrace/recfix/internal/pipeline"
	"github.com/navtrace/recfix/internal/repair"
	"github.com/navtrace/recfix/pkg/envelope"
)

func TestCatalogRecordsRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "repairs.db")

	cat, err := Open(dbPath)
	require.NoError(t, err)
	defer cat.Close()
	require.NotEmpty(t, cat.RunID())

	res := pipeline.FileResult{
		InputPath:  "/archive/trip1.rec",
		OutputPath: "/repaired/trip1.rec",
		Action:     pipeline.ActionRewritten,
		Profile:    classify.Profile{PreSIUnits: true, SwitchStateNoise: true},
		Emitted:    120,
		Dropped:    7,
		Counts: map[envelope.RecordType]repair.DropCounts{
			envelope.TypeMagneticField:   {Duplicates: 3},
			envelope.TypeGeodeticHeading: {Sentinels: 2},
		},
		SwitchNoise: 2,
	}
	require.NoError(t, cat.RecordFile(res))
	require.NoError(t, cat.FinishRun(pipeline.Summary{Scanned: 1, Rewritten: 1, Dropped: 7}))

	var action string
	var preSI bool
	var dups, sentinels, noise uint64
	row := cat.db.QueryRow(`SELECT action, pre_si, duplicates, sentinels, noise_drops FROM files WHERE run_id = ?`, cat.RunID())
	require.NoError(t, row.Scan(&action, &preSI, &dups, &sentinels, &noise))
	assert.Equal(t, "rewritten", action)
	assert.True(t, preSI)
	assert.EqualValues(t, 3, dups)
	assert.EqualValues(t, 2, sentinels)
	assert.EqualValues(t, 2, noise)

	var scanned, rewritten int
	row = cat.db.QueryRow(`SELECT scanned, rewritten FROM runs WHERE id = ?`, cat.RunID())
	require.NoError(t, row.Scan(&scanned, &rewritten))
	assert.Equal(t, 1, scanned)
	assert.Equal(t, 1, rewritten)
}

func TestCatalogSeparatesRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "repairs.db")

	first, err := Open(dbPath)
	require.NoError(t, err)
	firstID := first.RunID()
	require.NoError(t, first.FinishRun(pipeline.Summary{}))
	require.NoError(t, first.Close())

	second, err := Open(dbPath)
	require.NoError(t, err)
	defer second.Close()
	assert.NotEqual(t, firstID, second.RunID())

	var runs int
	require.NoError(t, second.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&runs))
	assert.Equal(t, 2, runs)
}
