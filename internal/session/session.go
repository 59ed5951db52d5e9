// Package session holds per-game state and the physics tick that advances
// it: ball and paddle motion, swept collision detection against walls and
// paddles, and round lifecycle (begin, timeout, goal).
package session

import (
	"math"
	"math/rand/v2"
	"time"

	"pongserver/internal/geometry"
	"pongserver/internal/protocol"
)

// Owner is the back-reference a session uses to deliver its round-result
// notification without depending on the client/registry package directly.
type Owner interface {
	EnqueueResponse(b []byte)
}

// StreamSink is the per-tick datagram destination for object-state updates.
type StreamSink interface {
	SendState(b []byte) error
}

// Config is the immutable-after-creation configuration of one session,
// taken verbatim from a CreateSession request.
type Config struct {
	FieldWidth           float32
	FieldHeight          float32
	WinScore             uint32
	GameTime             uint32 // seconds
	BallSpeed            float32
	BallRadius           float32
	PaddleSpeed          float32
	PaddleSize           float32
	PaddleOffsetFromWall float32
}

const resolutionEpsilon = 0.1 // px, nudge applied after a reflection
const residualFloor = 1.0     // px, swept loop terminates below this remaining distance

// Session is one instance of a two-player game.
type Session struct {
	id     uint32
	owner  Owner
	stream StreamSink
	cfg    Config

	scoreA, scoreB uint32

	ballPos geometry.Vec2
	ballVel geometry.Vec2

	paddleAOffset float32
	paddleBOffset float32
	paddleADir    protocol.InputKey
	paddleBDir    protocol.InputKey

	inputA inputSlot
	inputB inputSlot

	roundElapsedMS int64
	lastTickTime   time.Time

	roundRunning    bool
	sessionEnded    bool
	lastRoundResult protocol.WinPlayer
}

type inputSlot struct {
	key InputKeyType
}

// InputKeyType pairs an input key with its press/release type; kept as a
// small value type so the zero value (None, None) is a valid "no input yet"
// slot.
type InputKeyType struct {
	Key  protocol.InputKey
	Type protocol.InputType
}

// New constructs a session with score zero and no round in progress.
func New(id uint32, owner Owner, stream StreamSink, cfg Config) *Session {
	return &Session{
		id:           id,
		owner:        owner,
		stream:       stream,
		cfg:          cfg,
		lastTickTime: time.Now(),
	}
}

func (s *Session) GetSessionID() uint32                        { return s.id }
func (s *Session) IsRoundRunning() bool                        { return s.roundRunning }
func (s *Session) IsSessionEnded() bool                        { return s.sessionEnded }
func (s *Session) GetRoundResult() protocol.WinPlayer          { return s.lastRoundResult }
func (s *Session) GetLastTickTime() time.Time                  { return s.lastTickTime }
func (s *Session) GetOwner() Owner                             { return s.owner }
func (s *Session) Scores() (a, b uint32)                       { return s.scoreA, s.scoreB }

// BeginRound resets ball and paddle state and starts a fresh round. It
// fails if a round is already running.
func (s *Session) BeginRound() bool {
	if s.roundRunning {
		return false
	}

	s.inputA = inputSlot{}
	s.inputB = inputSlot{}

	s.ballPos = geometry.Vec2{X: s.cfg.FieldWidth / 2, Y: s.cfg.FieldHeight / 2}

	theta := float32(rand.IntN(360)) * (math.Pi / 180)
	dir := geometry.Vec2{X: float32(math.Cos(float64(theta))), Y: float32(math.Sin(float64(theta)))}
	s.ballVel = dir.Scale(s.cfg.BallSpeed)

	s.paddleAOffset = 0
	s.paddleBOffset = 0
	s.paddleADir = protocol.KeyNone
	s.paddleBDir = protocol.KeyNone

	s.roundElapsedMS = 0
	s.roundRunning = true
	s.lastTickTime = time.Now()
	return true
}

// SetPlayerInput overwrites the latest pending input for one player. It
// fails if the round is not currently running.
func (s *Session) SetPlayerInput(player protocol.PlayerSlot, key protocol.InputKey, typ protocol.InputType) bool {
	if !s.roundRunning {
		return false
	}
	slot := InputKeyType{Key: key, Type: typ}
	switch player {
	case protocol.PlayerA:
		s.inputA.key = slot
	case protocol.PlayerB:
		s.inputB.key = slot
	default:
		return false
	}
	return true
}

// Tick advances the session to now. It returns true on success; the only
// failure mode is a session with no applicable work, which still succeeds
// (spec's tick never fails outright).
func (s *Session) Tick(now time.Time) bool {
	deltaMS := now.Sub(s.lastTickTime).Milliseconds()
	s.lastTickTime = now

	if !s.roundRunning {
		return true
	}

	s.roundElapsed(deltaMS)
	if !s.roundRunning {
		return true
	}

	deltaSec := float32(deltaMS) / 1000
	s.applyPaddleMotion(deltaSec)
	s.sweepBall(deltaSec)
	return true
}

func (s *Session) roundElapsed(deltaMS int64) {
	s.roundElapsedMS += deltaMS
	if s.roundElapsedMS >= int64(s.cfg.GameTime)*1000 {
		s.roundRunning = false
		s.lastRoundResult = protocol.ResultTimeout
		s.sessionEnded = true
	}
}

func (s *Session) applyPaddleMotion(deltaSec float32) {
	deltaPx := s.cfg.PaddleSpeed * deltaSec
	half := s.cfg.FieldHeight / 2

	s.paddleAOffset = movePaddle(s.paddleAOffset, s.paddleADir, deltaPx, half)
	s.paddleBOffset = movePaddle(s.paddleBOffset, s.paddleBDir, deltaPx, half)

	s.paddleADir = applyLatestInput(s.paddleADir, s.inputA.key)
	s.paddleBDir = applyLatestInput(s.paddleBDir, s.inputB.key)
}

func movePaddle(offset float32, dir protocol.InputKey, deltaPx, half float32) float32 {
	switch dir {
	case protocol.KeyRight:
		offset -= deltaPx
	case protocol.KeyLeft:
		offset += deltaPx
	}
	if offset > half {
		offset = half
	}
	if offset < -half {
		offset = -half
	}
	return offset
}

func applyLatestInput(current protocol.InputKey, in InputKeyType) protocol.InputKey {
	switch in.Type {
	case protocol.InputPress:
		return in.Key
	case protocol.InputRelease:
		return protocol.KeyNone
	default:
		return current
	}
}

func (s *Session) paddleASegment() (p1, p2 geometry.Vec2) {
	center := geometry.Vec2{
		X: s.cfg.PaddleOffsetFromWall,
		Y: s.cfg.FieldHeight/2 - s.paddleAOffset,
	}
	half := s.cfg.PaddleSize / 2
	return geometry.Vec2{X: center.X, Y: center.Y - half}, geometry.Vec2{X: center.X, Y: center.Y + half}
}

func (s *Session) paddleBSegment() (p1, p2 geometry.Vec2) {
	center := geometry.Vec2{
		X: s.cfg.FieldWidth - s.cfg.PaddleOffsetFromWall,
		Y: s.cfg.FieldHeight/2 + s.paddleBOffset,
	}
	half := s.cfg.PaddleSize / 2
	return geometry.Vec2{X: center.X, Y: center.Y - half}, geometry.Vec2{X: center.X, Y: center.Y + half}
}

// sweepBall runs the swept collision loop: resolve at most one qualifying
// collision per iteration, restarting from scratch afterward, until the
// remaining travel distance drops below the residual floor.
func (s *Session) sweepBall(deltaSec float32) {
	remaining := deltaSec * s.cfg.BallSpeed

	for remaining >= residualFloor {
		next := s.ballPos.Add(s.ballVel.Scale(deltaSec))
		segLen := next.Sub(s.ballPos).Length()
		if segLen < geometry.Epsilon {
			break
		}
		dir := next.Sub(s.ballPos).Normalize()

		if s.tryPaddleCollision(s.paddleASegment, dir, &remaining) {
			continue
		}
		if s.tryPaddleCollision(s.paddleBSegment, dir, &remaining) {
			continue
		}
		if s.tryWallCollision(dir, &remaining) {
			if s.sessionEnded {
				return
			}
			continue
		}

		s.ballPos = next
		return
	}
}

func (s *Session) tryPaddleCollision(segment func() (geometry.Vec2, geometry.Vec2), dir geometry.Vec2, remaining *float32) bool {
	p1, p2 := segment()
	pBall, pPaddle, _, t := geometry.SegmentSegmentClosest(s.ballPos, s.ballPos.Add(dir), p1, p2)

	toward := pPaddle.Sub(pBall)
	dist := toward.Length()
	if dist >= s.cfg.BallRadius-geometry.Epsilon {
		return false
	}
	if geometry.Dot(toward, dir) < 0 {
		return false
	}

	axis := p2.Sub(p1)
	normalSign := geometry.Cross(axis, dir)
	clockwise := normalSign < 0
	normal := geometry.LineNormal(p1, p2, clockwise)

	reflectTheta := (t - 0.5) * 0.8 * normal.X
	reflectRad := float64(reflectTheta * math.Pi)
	cosT, sinT := math.Cos(reflectRad), math.Sin(reflectRad)
	reflected := geometry.Vec2{
		X: float32(float64(normal.X)*cosT - float64(normal.Y)*sinT),
		Y: float32(float64(normal.X)*sinT + float64(normal.Y)*cosT),
	}.Normalize()

	s.ballVel = reflected.Scale(s.cfg.BallSpeed)
	s.ballPos = pBall.Add(reflected.Scale(resolutionEpsilon))
	*remaining -= dist
	return true
}

func (s *Session) tryWallCollision(dir geometry.Vec2, remaining *float32) bool {
	w, h := s.cfg.FieldWidth, s.cfg.FieldHeight
	walls := [4]struct {
		p1, p2    geometry.Vec2
		goal      bool
		goalOf    protocol.WinPlayer
	}{
		{geometry.Vec2{X: 0, Y: 0}, geometry.Vec2{X: w, Y: 0}, false, 0},
		{geometry.Vec2{X: 0, Y: h}, geometry.Vec2{X: w, Y: h}, false, 0},
		{geometry.Vec2{X: 0, Y: 0}, geometry.Vec2{X: 0, Y: h}, true, protocol.ResultWinB},
		{geometry.Vec2{X: w, Y: 0}, geometry.Vec2{X: w, Y: h}, true, protocol.ResultWinA},
	}

	for _, wall := range walls {
		pBall, pWall, _, _ := geometry.SegmentSegmentClosest(s.ballPos, s.ballPos.Add(dir), wall.p1, wall.p2)
		toward := pWall.Sub(pBall)
		dist := toward.Length()
		if dist >= s.cfg.BallRadius-geometry.Epsilon {
			continue
		}
		if geometry.Dot(toward, dir) < 0 {
			continue
		}

		if wall.goal {
			s.roundRunning = false
			s.sessionEnded = true
			s.lastRoundResult = wall.goalOf
			if wall.goalOf == protocol.ResultWinA {
				s.scoreA++
			} else {
				s.scoreB++
			}
			return true
		}

		axis := wall.p2.Sub(wall.p1)
		clockwise := geometry.Cross(axis, dir) < 0
		normal := geometry.LineNormal(wall.p1, wall.p2, clockwise)
		reflected := dir.Sub(normal.Scale(2 * geometry.Dot(dir, normal)))

		s.ballVel = reflected.Scale(s.cfg.BallSpeed)
		s.ballPos = pBall.Add(reflected.Scale(resolutionEpsilon))
		*remaining -= dist
		return true
	}
	return false
}

// SendState emits one object-state datagram to the session's registered
// peer. Loss is acceptable; callers neither retry nor log on error.
func (s *Session) SendState() error {
	if s.stream == nil {
		return nil
	}
	payload := protocol.EncodeObjectState(protocol.ObjectState{
		BallX:         s.ballPos.X,
		BallY:         s.ballPos.Y,
		PaddleAOffset: s.paddleAOffset,
		PaddleBOffset: s.paddleBOffset,
	})
	return s.stream.SendState(payload)
}

// EnqueueRoundResult, called by the scheduler's tick epilogue for a session
// that ended this tick, delivers the unsolicited round-end notification.
func (s *Session) EnqueueRoundResult() {
	if s.owner == nil {
		return
	}
	s.owner.EnqueueResponse(protocol.EncodeRoundResult(s.lastRoundResult))
}
