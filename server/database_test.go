package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "rsm.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// journalBattle plays sc to completion and records every event
func journalBattle(t *testing.T, db *DB, id string, sc *Scenario) []Event {
	t.Helper()
	require.NoError(t, db.CreateBattle(id, sc))

	b, err := NewBattle(id, sc, zerolog.Nop())
	require.NoError(t, err)
	var events []Event
	err = b.Run(context.Background(), 0, func(ev Event) error {
		events = append(events, ev)
		return db.RecordEvent(ev)
	})
	require.NoError(t, err)
	require.NoError(t, db.FinishBattle(id, StatusFinished, b.StepCount()))
	return events
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)

	assert.Empty(t, db.GetSetting("missing"))
	require.NoError(t, db.SetSetting("k", "v1"))
	assert.Equal(t, "v1", db.GetSetting("k"))
	require.NoError(t, db.SetSetting("k", "v2"))
	assert.Equal(t, "v2", db.GetSetting("k"))
}

func TestJournalBattle(t *testing.T) {
	db := openTestDB(t)
	sc := ReferenceScenario()
	journalBattle(t, db, "b1", sc)

	row, err := db.GetBattle("b1")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "reference", row.Name)
	assert.Equal(t, StatusFinished, row.Status)
	assert.Equal(t, len(sc.Steps), row.Steps)
	assert.NotNil(t, row.FinishedAt)

	stored, err := db.GetScenario("b1")
	require.NoError(t, err)
	assert.Equal(t, sc, stored)

	missing, err := db.GetBattle("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestJournalEvents(t *testing.T) {
	db := openTestDB(t)
	events := journalBattle(t, db, "b1", ReferenceScenario())

	rows, err := db.GetEvents("b1")
	require.NoError(t, err)
	require.Len(t, rows, len(events))
	for i, row := range rows {
		assert.Equal(t, i, row.Step)
		assert.Equal(t, events[i].Op, row.Op)
		assert.Equal(t, events[i].Desc, row.Desc)
		assert.Equal(t, events[i].Digest, row.Digest)
	}
}

func TestLoadSnapshot(t *testing.T) {
	db := openTestDB(t)
	events := journalBattle(t, db, "b1", ReferenceScenario())

	last := events[len(events)-1]
	state, err := db.LoadSnapshot("b1", last.Step)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, last.State, *state)

	state, err = db.LoadSnapshot("b1", 99)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestLoadSnapshotDetectsTampering(t *testing.T) {
	db := openTestDB(t)
	journalBattle(t, db, "b1", ReferenceScenario())

	_, err := db.conn.Exec("UPDATE battle_events SET digest = 'bogus' WHERE battle_id = 'b1' AND step = 3")
	require.NoError(t, err)

	_, err = db.LoadSnapshot("b1", 3)
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestListBattles(t *testing.T) {
	db := openTestDB(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, db.CreateBattle(id, ReferenceScenario()))
	}

	rows, err := db.ListBattles(2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = db.ListBattles(10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, StatusRunning, row.Status)
		assert.Nil(t, row.FinishedAt)
	}
}
