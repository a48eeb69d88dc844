package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwoudenberg/elm-pair/internal/refactor"
	"github.com/jwoudenberg/elm-pair/internal/store"
)

func TestRecordSessionStartAndEndPersist(t *testing.T) {
	s, err := store.Open(":memory:", false, nil)
	require.NoError(t, err)

	s.RecordSessionStart("session-1", 0, "/proj", 1000)
	s.RecordSessionEnd("session-1")

	require.NoError(t, s.Close(context.Background()))
}

func TestRecordRefactorIncrementsSessionCounters(t *testing.T) {
	s, err := store.Open(":memory:", false, nil)
	require.NoError(t, err)

	s.RecordSessionStart("session-2", 1, "/proj", 1000)
	s.RecordRefactor("session-2", "refactor-1", &refactor.Refactor{
		Recognizer: "R1-rename-at-definition",
		State:      refactor.Emitted,
		Edits: []refactor.Edit{
			{File: "/proj/src/Main.elm", NewText: "inc"},
		},
	}, "/proj/src/Main.elm", "--- a/proj/src/Main.elm\n+++ b/proj/src/Main.elm\n")
	s.RecordRefactor("session-2", "refactor-2", &refactor.Refactor{
		Recognizer: "R1-rename-at-definition",
		State:      refactor.Discarded,
		Reason:     refactor.DiscardCollisionUnsafe,
	}, "/proj/src/Main.elm", "")

	require.NoError(t, s.Close(context.Background()))
}

func TestRecordStructuralEventPersists(t *testing.T) {
	s, err := store.Open(":memory:", false, nil)
	require.NoError(t, err)

	s.RecordSessionStart("session-3", 0, "/proj", 1000)
	s.RecordStructuralEvent("session-3", &refactor.StructuralEvent{
		Kind: refactor.TypeAliasAdded,
		Name: "User",
	}, "Main")

	require.NoError(t, s.Close(context.Background()))
}

func TestSnapshotKBPersists(t *testing.T) {
	s, err := store.Open(":memory:", false, nil)
	require.NoError(t, err)

	s.RecordSessionStart("session-4", 0, "/proj", 1000)
	s.SnapshotKB("session-4", 3, 12, 5, 8, 20)

	require.NoError(t, s.Close(context.Background()))
}

func TestIsRemoteURLDistinguishesLocalFromRemote(t *testing.T) {
	assert.True(t, store.IsRemoteURL("libsql://my-db.turso.io"))
	assert.True(t, store.IsRemoteURL("https://my-db.turso.io"))
	assert.False(t, store.IsRemoteURL("/var/lib/elm-pair/run.db"))
	assert.False(t, store.IsRemoteURL(":memory:"))
}

func TestOpenMirrorRejectsLocalPath(t *testing.T) {
	_, err := store.OpenMirror("/var/lib/elm-pair/run.db", "")
	assert.Error(t, err)
}
