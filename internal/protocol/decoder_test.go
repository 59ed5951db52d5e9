package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	createCalls []CreateSessionRequest
	abortCalls  []AbortSessionRequest
	beginCalls  []BeginRoundRequest
	inputCalls  []ActionPlayerInputRequest
}

func (h *recordingHandler) CreateSession(req CreateSessionRequest) []byte {
	h.createCalls = append(h.createCalls, req)
	return EncodeCreateSessionResponse(true, 7)
}

func (h *recordingHandler) AbortSession(req AbortSessionRequest) []byte {
	h.abortCalls = append(h.abortCalls, req)
	return EncodeAbortSessionResponse(true)
}

func (h *recordingHandler) BeginRound(req BeginRoundRequest) []byte {
	h.beginCalls = append(h.beginCalls, req)
	return EncodeBeginRoundAck(true)
}

func (h *recordingHandler) ActionPlayerInput(req ActionPlayerInputRequest) []byte {
	h.inputCalls = append(h.inputCalls, req)
	return EncodeActionPlayerInputResponse(true)
}

func encodeAbortSessionRequest(sessionID uint32) []byte {
	buf := make([]byte, headerSize+abortSessionRequestSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(QueryAbortSession))
	binary.LittleEndian.PutUint32(buf[4:8], sessionID)
	return buf
}

func encodeCreateSessionRequest() []byte {
	buf := make([]byte, headerSize+createSessionRequestSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(QueryCreateSession))
	body := buf[4:]
	binary.LittleEndian.PutUint32(body[0:4], 800)
	binary.LittleEndian.PutUint32(body[4:8], 400)
	binary.LittleEndian.PutUint32(body[8:12], 5)
	binary.LittleEndian.PutUint32(body[12:16], 20)
	binary.LittleEndian.PutUint32(body[16:20], 200)
	binary.LittleEndian.PutUint32(body[20:24], 30)
	binary.LittleEndian.PutUint32(body[24:28], 600)
	binary.LittleEndian.PutUint32(body[28:32], 200)
	binary.LittleEndian.PutUint32(body[32:36], 100)
	binary.LittleEndian.PutUint16(body[36:38], 40000)
	return buf
}

func TestDecodeSingleCompleteRecord(t *testing.T) {
	h := &recordingHandler{}
	buf := encodeAbortSessionRequest(42)
	var out []byte

	consumed, drop := Decode(buf, h, &out)

	assert.Equal(t, len(buf), consumed)
	assert.False(t, drop)
	require.Len(t, h.abortCalls, 1)
	assert.Equal(t, uint32(42), h.abortCalls[0].SessionID)
}

func TestDecodePartialTrailingRecordWaits(t *testing.T) {
	h := &recordingHandler{}
	full := encodeAbortSessionRequest(1)
	partial := full[:len(full)-1]
	var out []byte

	consumed, drop := Decode(partial, h, &out)

	assert.Equal(t, 0, consumed)
	assert.False(t, drop)
	assert.Empty(t, h.abortCalls)
}

func TestDecodeIdempotentWhenFedByteByByte(t *testing.T) {
	var whole []byte
	whole = append(whole, encodeCreateSessionRequest()...)
	whole = append(whole, encodeAbortSessionRequest(9)...)

	// Whole buffer at once.
	hWhole := &recordingHandler{}
	var outWhole []byte
	consumed, _ := Decode(whole, hWhole, &outWhole)
	require.Equal(t, len(whole), consumed)

	// Fed byte by byte, simulating partial TCP reads.
	hStreamed := &recordingHandler{}
	var recvBuffer []byte
	var outStreamed []byte
	for i := range whole {
		recvBuffer = append(recvBuffer, whole[i])
		n, _ := Decode(recvBuffer, hStreamed, &outStreamed)
		recvBuffer = recvBuffer[n:]
	}

	assert.Equal(t, hWhole.createCalls, hStreamed.createCalls)
	assert.Equal(t, hWhole.abortCalls, hStreamed.abortCalls)
	assert.Equal(t, outWhole, outStreamed)
}

func TestDecodeUnknownQueryIDEmitsErrorAndDropsConnection(t *testing.T) {
	h := &recordingHandler{}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, 999)
	var out []byte

	consumed, drop := Decode(buf, h, &out)

	assert.Equal(t, 4, consumed)
	assert.True(t, drop)
	require.Len(t, out, 5)
	assert.Equal(t, uint32(999), binary.LittleEndian.Uint32(out[0:4]))
	assert.Equal(t, uint8(1), out[4])
}

func TestObjectStateRoundTrip(t *testing.T) {
	s := ObjectState{BallX: 12.5, BallY: -3.25, PaddleAOffset: 10, PaddleBOffset: -10}
	got := DecodeObjectState(EncodeObjectState(s))
	assert.Equal(t, s, got)
}
