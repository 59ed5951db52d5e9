package ioloop

import (
	"pongserver/internal/protocol"
	"pongserver/internal/session"
)

// clientHandler implements protocol.Handler for one client connection,
// routing decoded requests to the shared registry while enforcing that a
// client may only address sessions it created.
type clientHandler struct {
	server *Server
	client *client
}

var _ protocol.Handler = (*clientHandler)(nil)

func (h *clientHandler) CreateSession(req protocol.CreateSessionRequest) []byte {
	cfg := session.Config{
		FieldWidth:           float32(req.FieldWidth),
		FieldHeight:          float32(req.FieldHeight),
		WinScore:             req.WinScore,
		GameTime:             req.GameTime,
		BallSpeed:            float32(req.BallSpeed),
		BallRadius:           float32(req.BallRadius),
		PaddleSpeed:          float32(req.PaddleSpeed),
		PaddleSize:           float32(req.PaddleSize),
		PaddleOffsetFromWall: float32(req.PaddleOffsetFromWall),
	}

	s, err := h.server.registry.Create(func(id uint32) *session.Session {
		stream := newSessionStream(h.server.udpConn, h.client.peerIP, req.RecvPort, h.server.metrics)
		return session.New(id, h.client, stream, cfg)
	})
	if err != nil {
		h.server.metrics.ProtocolErrors.WithLabelValues("create_session").Inc()
		return protocol.EncodeCreateSessionResponse(false, 0)
	}

	h.client.addSession(s.GetSessionID())
	return protocol.EncodeCreateSessionResponse(true, s.GetSessionID())
}

func (h *clientHandler) AbortSession(req protocol.AbortSessionRequest) []byte {
	if !h.ownsSession(req.SessionID) {
		h.server.metrics.ProtocolErrors.WithLabelValues("abort_session").Inc()
		return protocol.EncodeAbortSessionResponse(false)
	}
	if err := h.server.registry.Remove(req.SessionID); err != nil {
		return protocol.EncodeAbortSessionResponse(false)
	}
	h.client.removeSession(req.SessionID)
	return protocol.EncodeAbortSessionResponse(true)
}

func (h *clientHandler) BeginRound(req protocol.BeginRoundRequest) []byte {
	s, ok := h.lookupOwned(req.SessionID)
	if !ok {
		h.server.metrics.ProtocolErrors.WithLabelValues("begin_round").Inc()
		return protocol.EncodeBeginRoundAck(false)
	}
	return protocol.EncodeBeginRoundAck(s.BeginRound())
}

func (h *clientHandler) ActionPlayerInput(req protocol.ActionPlayerInputRequest) []byte {
	player := protocol.PlayerSlot(req.PlayerID)
	if player != protocol.PlayerA && player != protocol.PlayerB {
		h.server.metrics.ProtocolErrors.WithLabelValues("action_player_input").Inc()
		return protocol.EncodeActionPlayerInputResponse(false)
	}
	key := protocol.InputKey(req.InputKey)
	if key != protocol.KeyLeft && key != protocol.KeyRight {
		h.server.metrics.ProtocolErrors.WithLabelValues("action_player_input").Inc()
		return protocol.EncodeActionPlayerInputResponse(false)
	}
	typ := protocol.InputType(req.InputType)
	if typ != protocol.InputNone && typ != protocol.InputPress && typ != protocol.InputRelease {
		h.server.metrics.ProtocolErrors.WithLabelValues("action_player_input").Inc()
		return protocol.EncodeActionPlayerInputResponse(false)
	}

	s, ok := h.lookupOwned(req.SessionID)
	if !ok {
		h.server.metrics.ProtocolErrors.WithLabelValues("action_player_input").Inc()
		return protocol.EncodeActionPlayerInputResponse(false)
	}
	return protocol.EncodeActionPlayerInputResponse(s.SetPlayerInput(player, key, typ))
}

func (h *clientHandler) ownsSession(id uint32) bool {
	for _, v := range h.client.sessionIDs {
		if v == id {
			return true
		}
	}
	return false
}

func (h *clientHandler) lookupOwned(id uint32) (*session.Session, bool) {
	if !h.ownsSession(id) {
		return nil, false
	}
	return h.server.registry.Get(id)
}
