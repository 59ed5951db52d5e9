package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pongserver/internal/protocol"
)

type recordingOwner struct {
	responses [][]byte
}

func (o *recordingOwner) EnqueueResponse(b []byte) { o.responses = append(o.responses, b) }

type recordingStream struct {
	sent [][]byte
}

func (s *recordingStream) SendState(b []byte) error {
	s.sent = append(s.sent, b)
	return nil
}

func testConfig() Config {
	return Config{
		FieldWidth:           800,
		FieldHeight:          400,
		WinScore:             5,
		GameTime:             20,
		BallSpeed:            200,
		BallRadius:           30,
		PaddleSpeed:          600,
		PaddleSize:           200,
		PaddleOffsetFromWall: 100,
	}
}

func TestBeginRoundRejectsWhileRunning(t *testing.T) {
	s := New(1, &recordingOwner{}, &recordingStream{}, testConfig())
	require.True(t, s.BeginRound())
	assert.False(t, s.BeginRound())
}

func TestBeginRoundProducesNonDegenerateVelocity(t *testing.T) {
	s := New(1, &recordingOwner{}, &recordingStream{}, testConfig())
	require.True(t, s.BeginRound())

	speed := s.ballVel.Length()
	assert.InDelta(t, float32(200), speed, 0.01*200)
	assert.NotEqual(t, float32(0), s.ballVel.X+s.ballVel.Y)
}

func TestSetPlayerInputRequiresRunningRound(t *testing.T) {
	s := New(1, &recordingOwner{}, &recordingStream{}, testConfig())
	assert.False(t, s.SetPlayerInput(protocol.PlayerA, protocol.KeyLeft, protocol.InputPress))

	require.True(t, s.BeginRound())
	assert.True(t, s.SetPlayerInput(protocol.PlayerA, protocol.KeyLeft, protocol.InputPress))
}

func TestTickEndsRoundOnTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.GameTime = 1
	s := New(1, &recordingOwner{}, &recordingStream{}, cfg)
	require.True(t, s.BeginRound())

	base := s.lastTickTime
	ok := s.Tick(base.Add(1100 * time.Millisecond))

	assert.True(t, ok)
	assert.False(t, s.IsRoundRunning())
	assert.True(t, s.IsSessionEnded())
	assert.Equal(t, protocol.ResultTimeout, s.GetRoundResult())
}

func TestTickLeavesBallWithinFieldBounds(t *testing.T) {
	s := New(1, &recordingOwner{}, &recordingStream{}, testConfig())
	require.True(t, s.BeginRound())

	now := s.lastTickTime
	for i := 0; i < 200; i++ {
		now = now.Add(33 * time.Millisecond)
		s.Tick(now)
		if s.IsSessionEnded() {
			break
		}
		assert.GreaterOrEqual(t, s.ballPos.X, float32(-0.2))
		assert.LessOrEqual(t, s.ballPos.X, s.cfg.FieldWidth+0.2)
		assert.GreaterOrEqual(t, s.ballPos.Y, float32(-0.2))
		assert.LessOrEqual(t, s.ballPos.Y, s.cfg.FieldHeight+0.2)

		speed := s.ballVel.Length()
		assert.InDelta(t, float64(s.cfg.BallSpeed), float64(speed), float64(0.01*s.cfg.BallSpeed))
	}
}

func TestPaddleClampsToFieldHalfHeight(t *testing.T) {
	s := New(1, &recordingOwner{}, &recordingStream{}, testConfig())
	require.True(t, s.BeginRound())
	require.True(t, s.SetPlayerInput(protocol.PlayerA, protocol.KeyLeft, protocol.InputPress))

	now := s.lastTickTime
	for i := 0; i < 50; i++ {
		now = now.Add(100 * time.Millisecond)
		s.Tick(now)
	}

	assert.InDelta(t, s.cfg.FieldHeight/2, s.paddleAOffset, 1e-3)
}

func TestPaddleReleaseStopsMotion(t *testing.T) {
	s := New(1, &recordingOwner{}, &recordingStream{}, testConfig())
	require.True(t, s.BeginRound())
	require.True(t, s.SetPlayerInput(protocol.PlayerA, protocol.KeyLeft, protocol.InputPress))

	now := s.lastTickTime
	now = now.Add(200 * time.Millisecond)
	s.Tick(now)
	require.True(t, s.SetPlayerInput(protocol.PlayerA, protocol.KeyLeft, protocol.InputRelease))

	// A tick moves the paddle by the direction held going into it and only
	// then applies the latest input, so the release takes effect from the
	// tick after this one.
	now = now.Add(200 * time.Millisecond)
	s.Tick(now)

	offsetAfterRelease := s.paddleAOffset
	now = now.Add(200 * time.Millisecond)
	s.Tick(now)

	assert.Equal(t, offsetAfterRelease, s.paddleAOffset)
}

func TestSendStateForwardsToStream(t *testing.T) {
	stream := &recordingStream{}
	s := New(1, &recordingOwner{}, stream, testConfig())
	require.True(t, s.BeginRound())

	require.NoError(t, s.SendState())
	require.Len(t, stream.sent, 1)

	got := protocol.DecodeObjectState(stream.sent[0])
	assert.Equal(t, s.ballPos.X, got.BallX)
	assert.Equal(t, s.ballPos.Y, got.BallY)
}

func TestEnqueueRoundResultDeliversToOwner(t *testing.T) {
	owner := &recordingOwner{}
	s := New(1, owner, &recordingStream{}, testConfig())
	s.lastRoundResult = protocol.ResultWinA

	s.EnqueueRoundResult()

	require.Len(t, owner.responses, 1)
	assert.Equal(t, protocol.EncodeRoundResult(protocol.ResultWinA), owner.responses[0])
}
