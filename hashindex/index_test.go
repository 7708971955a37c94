package hashindex

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cufee/botto-guardian/database"
)

func testIndex(t *testing.T, cap int) (*Index, *database.Store) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	idx, err := Load(db, cap, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return idx, db
}

func record(hash uint64, guild, msg string) database.HashRecord {
	return database.HashRecord{
		Hash:      hash,
		GuildID:   guild,
		MessageID: msg,
		AuthorID:  "author-1",
	}
}

func TestFindMatchesDistance(t *testing.T) {
	assert := assert.New(t)
	idx, _ := testIndex(t, 0)

	base := uint64(0b1010_1010)
	require.NoError(t, idx.Insert(record(base, "g1", "m1")))

	fixtures := []struct {
		code    uint64
		maxDist int
		found   bool
	}{
		{code: base, maxDist: 0, found: true},
		{code: base ^ 0b111, maxDist: 5, found: true},
		{code: base ^ 0b111, maxDist: 3, found: true},
		{code: base ^ 0b111, maxDist: 2, found: false},
		{code: base ^ 0xFFFF, maxDist: 5, found: false},
	}
	for _, fix := range fixtures {
		matches := idx.FindMatches(fix.code, "g1", false, fix.maxDist)
		assert.Equal(fix.found, len(matches) == 1, "code %b maxDist %d", fix.code, fix.maxDist)
	}
}

func TestFindMatchesScopeAndOrder(t *testing.T) {
	assert := assert.New(t)
	idx, _ := testIndex(t, 0)

	base := uint64(0xF0F0)
	near := database.HashRecord{Hash: base ^ 0b1, GuildID: "g1", MessageID: "m2", FirstSeen: time.Now().UTC()}
	exactOld := database.HashRecord{Hash: base, GuildID: "g1", MessageID: "m1", FirstSeen: time.Now().UTC().Add(-time.Hour)}
	exactNew := database.HashRecord{Hash: base, GuildID: "g1", MessageID: "m3", FirstSeen: time.Now().UTC()}
	other := database.HashRecord{Hash: base, GuildID: "g2", MessageID: "m4", FirstSeen: time.Now().UTC()}
	for _, r := range []database.HashRecord{near, exactNew, exactOld, other} {
		require.NoError(t, idx.Insert(r))
	}

	// Guild scope hides g2
	matches := idx.FindMatches(base, "g1", false, 4)
	require.Len(t, matches, 3)
	// Ascending distance, then first-seen
	assert.Equal("m1", matches[0].MessageID)
	assert.Equal("m3", matches[1].MessageID)
	assert.Equal("m2", matches[2].MessageID)

	// Global scope sees the record from g2
	matches = idx.FindMatches(base, "g1", true, 4)
	assert.Len(matches, 4)
}

func TestInsertIdempotent(t *testing.T) {
	idx, _ := testIndex(t, 0)

	r := record(42, "g1", "m1")
	require.NoError(t, idx.Insert(r))
	require.NoError(t, idx.Insert(r))
	assert.Equal(t, 1, idx.Len())

	// Different attachment of the same message is a distinct record
	r.Attachment = 1
	require.NoError(t, idx.Insert(r))
	assert.Equal(t, 2, idx.Len())
}

func TestDispositionTransitions(t *testing.T) {
	assert := assert.New(t)
	idx, _ := testIndex(t, 0)

	require.NoError(t, idx.Insert(record(7, "g1", "m1")))

	n, err := idx.Flag(7, "g1")
	require.NoError(t, err)
	assert.Equal(1, n)

	// Flagged never transitions again
	n, err = idx.Clear(7, "g1")
	require.NoError(t, err)
	assert.Equal(0, n)
	matches := idx.FindMatches(7, "g1", false, 0)
	require.Len(t, matches, 1)
	assert.Equal(database.DispositionFlagged, matches[0].Disposition)
}

func TestFlagUnseenCodeCreatesRecord(t *testing.T) {
	idx, _ := testIndex(t, 0)

	n, err := idx.Flag(0xDEAD, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	matches := idx.FindMatches(0xDEAD, "g1", false, 0)
	require.Len(t, matches, 1)
	assert.Equal(t, database.DispositionFlagged, matches[0].Disposition)
}

func TestEvictionKeepsFlagged(t *testing.T) {
	assert := assert.New(t)
	idx, _ := testIndex(t, 3)

	oldest := database.HashRecord{Hash: 1, GuildID: "g1", MessageID: "m1", FirstSeen: time.Now().UTC().Add(-3 * time.Hour)}
	flagged := database.HashRecord{Hash: 2, GuildID: "g1", MessageID: "m2", FirstSeen: time.Now().UTC().Add(-2 * time.Hour), Disposition: database.DispositionFlagged}
	newer := database.HashRecord{Hash: 3, GuildID: "g1", MessageID: "m3", FirstSeen: time.Now().UTC().Add(-time.Hour)}
	require.NoError(t, idx.Insert(oldest))
	require.NoError(t, idx.Insert(flagged))
	require.NoError(t, idx.Insert(newer))

	// Over cap, the oldest observed record goes first
	require.NoError(t, idx.Insert(record(4, "g1", "m4")))
	assert.Equal(3, idx.Len())
	assert.Empty(idx.FindMatches(1, "g1", false, 0))
	assert.Len(idx.FindMatches(2, "g1", false, 0), 1)
}

func TestReloadFromStore(t *testing.T) {
	idx, db := testIndex(t, 0)
	require.NoError(t, idx.Insert(record(99, "g1", "m1")))

	reloaded, err := Load(db, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Len())
	assert.Len(t, reloaded.FindMatches(99, "g1", false, 0), 1)
}
