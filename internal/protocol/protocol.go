// Package protocol implements the fixed-layout, length-implicit binary
// request/response records exchanged over the session control channel
// (see spec §4.5 and §6). Every record starts with a 32-bit little-endian
// query id; bodies are packed with no padding, integers and floats in the
// wire's native byte order.
package protocol

import (
	"encoding/binary"
	"math"
)

// QueryID identifies a request or response record.
type QueryID uint32

const (
	QueryCreateSession     QueryID = 101
	QueryAbortSession      QueryID = 102
	QueryBeginRound        QueryID = 201
	QueryActionPlayerInput QueryID = 301
)

// Fixed body sizes, in bytes, excluding the 4-byte query id header.
const (
	headerSize = 4

	createSessionRequestSize     = 4*9 + 2 // nine u32 fields + one u16 port
	abortSessionRequestSize      = 4
	beginRoundRequestSize        = 4
	actionPlayerInputRequestSize = 4 + 4 + 1 + 1
)

// PlayerSlot identifies which paddle an ActionPlayerInput request targets.
type PlayerSlot uint32

const (
	PlayerA PlayerSlot = 1
	PlayerB PlayerSlot = 2
)

// InputKey is the paddle direction named by a player input.
type InputKey uint8

const (
	KeyNone  InputKey = 0
	KeyLeft  InputKey = 1
	KeyRight InputKey = 2
)

// InputType distinguishes a key press from a key release.
type InputType uint8

const (
	InputNone    InputType = 0
	InputPress   InputType = 1
	InputRelease InputType = 2
)

// WinPlayer is the round outcome carried by an unsolicited round-result
// notification.
type WinPlayer uint32

const (
	ResultTimeout WinPlayer = 0
	ResultWinA    WinPlayer = 1
	ResultWinB    WinPlayer = 2
)

// CreateSessionRequest is the body of a query-id-101 request.
type CreateSessionRequest struct {
	FieldWidth           uint32
	FieldHeight          uint32
	WinScore             uint32
	GameTime             uint32
	BallSpeed            uint32
	BallRadius           uint32
	PaddleSpeed          uint32
	PaddleSize           uint32
	PaddleOffsetFromWall uint32
	RecvPort             uint16
}

func decodeCreateSessionRequest(b []byte) CreateSessionRequest {
	return CreateSessionRequest{
		FieldWidth:           binary.LittleEndian.Uint32(b[0:4]),
		FieldHeight:          binary.LittleEndian.Uint32(b[4:8]),
		WinScore:             binary.LittleEndian.Uint32(b[8:12]),
		GameTime:             binary.LittleEndian.Uint32(b[12:16]),
		BallSpeed:            binary.LittleEndian.Uint32(b[16:20]),
		BallRadius:           binary.LittleEndian.Uint32(b[20:24]),
		PaddleSpeed:          binary.LittleEndian.Uint32(b[24:28]),
		PaddleSize:           binary.LittleEndian.Uint32(b[28:32]),
		PaddleOffsetFromWall: binary.LittleEndian.Uint32(b[32:36]),
		RecvPort:             binary.LittleEndian.Uint16(b[36:38]),
	}
}

// AbortSessionRequest is the body of a query-id-102 request.
type AbortSessionRequest struct {
	SessionID uint32
}

func decodeAbortSessionRequest(b []byte) AbortSessionRequest {
	return AbortSessionRequest{SessionID: binary.LittleEndian.Uint32(b[0:4])}
}

// BeginRoundRequest is the body of a query-id-201 request.
type BeginRoundRequest struct {
	SessionID uint32
}

func decodeBeginRoundRequest(b []byte) BeginRoundRequest {
	return BeginRoundRequest{SessionID: binary.LittleEndian.Uint32(b[0:4])}
}

// ActionPlayerInputRequest is the body of a query-id-301 request.
type ActionPlayerInputRequest struct {
	SessionID uint32
	PlayerID  uint32
	InputKey  uint8
	InputType uint8
}

func decodeActionPlayerInputRequest(b []byte) ActionPlayerInputRequest {
	return ActionPlayerInputRequest{
		SessionID: binary.LittleEndian.Uint32(b[0:4]),
		PlayerID:  binary.LittleEndian.Uint32(b[4:8]),
		InputKey:  b[8],
		InputType: b[9],
	}
}

// ---- Response encoders ----

// EncodeCreateSessionResponse builds a query-id-101 response. The session
// id field is only appended when ok is true, per spec §6.
func EncodeCreateSessionResponse(ok bool, sessionID uint32) []byte {
	if !ok {
		return encodeResultOnly(QueryCreateSession, false)
	}
	buf := make([]byte, headerSize+1+4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(QueryCreateSession))
	buf[4] = 0
	binary.LittleEndian.PutUint32(buf[5:9], sessionID)
	return buf
}

// EncodeAbortSessionResponse builds a query-id-102 response.
func EncodeAbortSessionResponse(ok bool) []byte {
	return encodeResultOnly(QueryAbortSession, ok)
}

// EncodeBeginRoundAck builds the immediate query-id-201 acknowledgment.
func EncodeBeginRoundAck(ok bool) []byte {
	return encodeResultOnly(QueryBeginRound, ok)
}

// EncodeRoundResult builds the unsolicited query-id-201 round-end
// notification. Per the Open Question in spec §9, this repo adopts the
// "4-byte winner only" layout (no leading result byte).
func EncodeRoundResult(winner WinPlayer) []byte {
	buf := make([]byte, headerSize+4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(QueryBeginRound))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(winner))
	return buf
}

// EncodeActionPlayerInputResponse builds a query-id-301 response.
func EncodeActionPlayerInputResponse(ok bool) []byte {
	return encodeResultOnly(QueryActionPlayerInput, ok)
}

// EncodeUnknownResponse builds the error response for an unrecognized
// query id, echoing the id exactly as received.
func EncodeUnknownResponse(queryID uint32) []byte {
	buf := make([]byte, headerSize+1)
	binary.LittleEndian.PutUint32(buf[0:4], queryID)
	buf[4] = 1
	return buf
}

func encodeResultOnly(id QueryID, ok bool) []byte {
	buf := make([]byte, headerSize+1)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(id))
	if ok {
		buf[4] = 0
	} else {
		buf[4] = 1
	}
	return buf
}

// ObjectState is the per-tick UDP datagram payload streamed to a
// session's registered peer (spec §4.3/§6).
type ObjectState struct {
	BallX          float32
	BallY          float32
	PaddleAOffset  float32
	PaddleBOffset  float32
}

// EncodeObjectState packs one datagram's worth of ball/paddle state.
func EncodeObjectState(s ObjectState) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(s.BallX))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(s.BallY))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(s.PaddleAOffset))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(s.PaddleBOffset))
	return buf
}

// DecodeObjectState unpacks a state datagram; used by clients and tests.
func DecodeObjectState(b []byte) ObjectState {
	return ObjectState{
		BallX:         math.Float32frombits(binary.LittleEndian.Uint32(b[0:4])),
		BallY:         math.Float32frombits(binary.LittleEndian.Uint32(b[4:8])),
		PaddleAOffset: math.Float32frombits(binary.LittleEndian.Uint32(b[8:12])),
		PaddleBOffset: math.Float32frombits(binary.LittleEndian.Uint32(b[12:16])),
	}
}
