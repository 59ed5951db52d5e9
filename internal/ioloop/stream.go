package ioloop

import (
	"fmt"
	"net"

	"pongserver/internal/metrics"
	"pongserver/internal/session"
)

// newSharedUDPSocket opens the one outbound datagram socket every
// session's state datagrams are sent through. The OS kernel serializes
// concurrent writes to it and each datagram is atomic, so workers can
// call SendState concurrently without user-space locking.
func newSharedUDPSocket() (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("ioloop: opening shared datagram socket: %w", err)
	}
	return conn, nil
}

// sessionStream binds the shared socket to one session's peer address and
// port; it implements session.StreamSink.
type sessionStream struct {
	conn    *net.UDPConn
	peer    *net.UDPAddr
	metrics *metrics.Metrics
}

var _ session.StreamSink = (*sessionStream)(nil)

func (s *sessionStream) SendState(b []byte) error {
	_, err := s.conn.WriteToUDP(b, s.peer)
	if err != nil {
		return err
	}
	s.metrics.StateDatagramsSent.Inc()
	return nil
}

// newSessionStream resolves ip:port into the peer address a session
// streams its per-tick state to.
func newSessionStream(conn *net.UDPConn, ip net.IP, port uint16, m *metrics.Metrics) *sessionStream {
	return &sessionStream{conn: conn, peer: &net.UDPAddr{IP: ip, Port: int(port)}, metrics: m}
}
