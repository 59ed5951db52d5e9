package protocol

import "encoding/binary"

// Handler services one decoded request and returns the bytes to append to
// the requesting client's send buffer.
type Handler interface {
	CreateSession(req CreateSessionRequest) []byte
	AbortSession(req AbortSessionRequest) []byte
	BeginRound(req BeginRoundRequest) []byte
	ActionPlayerInput(req ActionPlayerInputRequest) []byte
}

// bodySize returns the known fixed body length for a query id, or -1 if
// the id isn't recognized.
func bodySize(id QueryID) int {
	switch id {
	case QueryCreateSession:
		return createSessionRequestSize
	case QueryAbortSession:
		return abortSessionRequestSize
	case QueryBeginRound:
		return beginRoundRequestSize
	case QueryActionPlayerInput:
		return actionPlayerInputRequestSize
	default:
		return -1
	}
}

// Decode consumes the longest prefix of buf that holds complete records,
// dispatching each to h and appending its response to out. It returns the
// number of bytes consumed (callers should drop that prefix from their
// receive buffer) and whether the connection must be closed.
//
// An unknown query id can't be framed past its header — there's no way to
// know how many body bytes to skip — so the decoder emits the error
// response for it and reports dropConnection=true without consuming
// anything past that record's header; the caller must not attempt to
// decode further on this connection.
func Decode(buf []byte, h Handler, out *[]byte) (consumed int, dropConnection bool) {
	offset := 0

	for {
		remaining := len(buf) - offset
		if remaining < headerSize {
			break
		}

		id := QueryID(binary.LittleEndian.Uint32(buf[offset : offset+headerSize]))
		size := bodySize(id)

		if size < 0 {
			*out = append(*out, EncodeUnknownResponse(uint32(id))...)
			return offset + headerSize, true
		}

		if remaining-headerSize < size {
			break
		}

		body := buf[offset+headerSize : offset+headerSize+size]

		var resp []byte
		switch id {
		case QueryCreateSession:
			resp = h.CreateSession(decodeCreateSessionRequest(body))
		case QueryAbortSession:
			resp = h.AbortSession(decodeAbortSessionRequest(body))
		case QueryBeginRound:
			resp = h.BeginRound(decodeBeginRoundRequest(body))
		case QueryActionPlayerInput:
			resp = h.ActionPlayerInput(decodeActionPlayerInputRequest(body))
		}

		*out = append(*out, resp...)
		offset += headerSize + size
	}

	return offset, false
}
