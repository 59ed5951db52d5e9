package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pongserver/internal/session"
)

type nopOwner struct{}

func (nopOwner) EnqueueResponse(b []byte) {}

func newTestSession(id uint32) *session.Session {
	return session.New(id, nopOwner{}, nil, session.Config{
		FieldWidth: 800, FieldHeight: 400, BallSpeed: 200, GameTime: 20,
	})
}

const testMaxSessions = 1000

func TestCreateAssignsDistinctIDs(t *testing.T) {
	r := New(testMaxSessions)

	s1, err := r.Create(newTestSession)
	require.NoError(t, err)
	s2, err := r.Create(newTestSession)
	require.NoError(t, err)

	assert.NotEqual(t, s1.GetSessionID(), s2.GetSessionID())
	assert.Less(t, s1.GetSessionID(), uint32(testMaxSessions))
	assert.Less(t, s2.GetSessionID(), uint32(testMaxSessions))
}

func TestRemoveReleasesIDForReuse(t *testing.T) {
	r := New(testMaxSessions)
	s1, err := r.Create(newTestSession)
	require.NoError(t, err)

	require.NoError(t, r.Remove(s1.GetSessionID()))
	s2, err := r.Create(newTestSession)
	require.NoError(t, err)

	assert.Equal(t, s1.GetSessionID(), s2.GetSessionID())
}

func TestRemoveUnknownIDFails(t *testing.T) {
	r := New(testMaxSessions)
	assert.ErrorIs(t, r.Remove(123), ErrSessionNotFound)
}

func TestCreateFailsWhenFull(t *testing.T) {
	const limit = 3
	r := New(limit)
	for i := 0; i < limit; i++ {
		_, err := r.Create(newTestSession)
		require.NoError(t, err)
	}

	_, err := r.Create(newTestSession)
	assert.ErrorIs(t, err, ErrRegistryFull)
}

func TestRunningFiltersByRoundState(t *testing.T) {
	r := New(testMaxSessions)
	s1, _ := r.Create(newTestSession)
	s2, _ := r.Create(newTestSession)
	require.True(t, s1.BeginRound())

	running := r.Running()

	require.Len(t, running, 1)
	assert.Equal(t, s1.GetSessionID(), running[0].GetSessionID())
	_ = s2
}

func newImmediateTimeoutSession(id uint32) *session.Session {
	return session.New(id, nopOwner{}, nil, session.Config{
		FieldWidth: 800, FieldHeight: 400, BallSpeed: 200, GameTime: 0,
	})
}

func TestRemoveEndedPrunesAndFreesIDs(t *testing.T) {
	r := New(testMaxSessions)
	s1, err := r.Create(newImmediateTimeoutSession)
	require.NoError(t, err)
	_, err = r.Create(newTestSession)
	require.NoError(t, err)

	require.True(t, s1.BeginRound())
	s1.Tick(s1.GetLastTickTime().Add(1))
	require.True(t, s1.IsSessionEnded())

	removed := r.RemoveEnded()

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, r.Len())

	s3, err := r.Create(newTestSession)
	require.NoError(t, err)
	assert.Equal(t, s1.GetSessionID(), s3.GetSessionID())
}
