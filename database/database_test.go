package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGuildProfileRoundTrip(t *testing.T) {
	assert := assert.New(t)
	s := testDB(t)

	_, err := s.GetGuildProfile("g1")
	assert.ErrorIs(err, ErrNotFound)

	p := GuildProfile{ID: "g1", MemberRoleID: "r1", ModeratorRoleID: "r2", WaitChannelID: "c1", LawsChannelID: "c2", ModChannelID: "c3"}
	require.NoError(t, s.PutGuildProfile(p))
	got, err := s.GetGuildProfile("g1")
	require.NoError(t, err)
	assert.Equal(p, got)

	require.NoError(t, s.DeleteGuildProfile("g1"))
	_, err = s.GetGuildProfile("g1")
	assert.ErrorIs(err, ErrNotFound)
	assert.ErrorIs(s.DeleteGuildProfile("g1"), ErrNotFound)
}

func TestMemberStateRoundTrip(t *testing.T) {
	assert := assert.New(t)
	s := testDB(t)

	ms := MemberState{GuildID: "g1", MemberID: "m1", JoinedAt: time.Now().UTC().Truncate(time.Second), Version: 1}
	require.NoError(t, s.PutMemberState(ms))
	got, err := s.GetMemberState("g1", "m1")
	require.NoError(t, err)
	assert.Equal(ms, got)

	// Keys do not collide across guilds
	_, err = s.GetMemberState("g2", "m1")
	assert.ErrorIs(err, ErrNotFound)

	require.NoError(t, s.DeleteMemberState("g1", "m1"))
	_, err = s.GetMemberState("g1", "m1")
	assert.ErrorIs(err, ErrNotFound)
}

func TestHashRecordsRoundTrip(t *testing.T) {
	assert := assert.New(t)
	s := testDB(t)

	a := HashRecord{Hash: 42, GuildID: "g1", MessageID: "m1", AuthorID: "u1", Disposition: DispositionObserved, FirstSeen: time.Now().UTC().Truncate(time.Second)}
	b := a
	b.Attachment = 1
	require.NoError(t, s.PutHashRecord(a))
	require.NoError(t, s.PutHashRecord(b))

	records, err := s.LoadHashRecords()
	require.NoError(t, err)
	assert.Len(records, 2)

	require.NoError(t, s.DeleteHashRecord(a))
	records, err = s.LoadHashRecords()
	require.NoError(t, err)
	assert.Len(records, 1)
	assert.Equal(1, records[0].Attachment)
}
