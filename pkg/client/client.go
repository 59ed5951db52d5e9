// Package client is a thin dialer and request/response codec shared by
// the scripted client and the stress-test tool: connect the TCP control
// channel, open a UDP listener for the state stream, and send one
// request at a time, blocking for its response.
package client

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"pongserver/internal/protocol"
)

// Conn is one control-channel connection plus its paired UDP state
// listener.
type Conn struct {
	tcp      net.Conn
	udp      *net.UDPConn
	readBuf  []byte
}

// Dial connects to the server's TCP control port and opens a UDP socket
// bound to an ephemeral port for receiving the state stream.
func Dial(addr string) (*Conn, error) {
	tcp, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dialing control channel: %w", err)
	}

	udp, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		tcp.Close()
		return nil, fmt.Errorf("client: opening state listener: %w", err)
	}

	return &Conn{tcp: tcp, udp: udp}, nil
}

// RecvPort is the UDP port this connection listens on, for embedding in a
// CreateSession request.
func (c *Conn) RecvPort() uint16 {
	return uint16(c.udp.LocalAddr().(*net.UDPAddr).Port)
}

// Close releases both the control connection and the state listener.
func (c *Conn) Close() error {
	c.udp.Close()
	return c.tcp.Close()
}

// CreateSession sends a CreateSession request and waits for its
// response, returning the assigned session id.
func (c *Conn) CreateSession(req protocol.CreateSessionRequest) (sessionID uint32, err error) {
	body := make([]byte, 38)
	binary.LittleEndian.PutUint32(body[0:4], req.FieldWidth)
	binary.LittleEndian.PutUint32(body[4:8], req.FieldHeight)
	binary.LittleEndian.PutUint32(body[8:12], req.WinScore)
	binary.LittleEndian.PutUint32(body[12:16], req.GameTime)
	binary.LittleEndian.PutUint32(body[16:20], req.BallSpeed)
	binary.LittleEndian.PutUint32(body[20:24], req.BallRadius)
	binary.LittleEndian.PutUint32(body[24:28], req.PaddleSpeed)
	binary.LittleEndian.PutUint32(body[28:32], req.PaddleSize)
	binary.LittleEndian.PutUint32(body[32:36], req.PaddleOffsetFromWall)
	binary.LittleEndian.PutUint16(body[36:38], req.RecvPort)

	resp, err := c.createSessionRoundTrip(body)
	if err != nil {
		return 0, err
	}
	if resp[0] != 0 {
		return 0, fmt.Errorf("client: create session rejected")
	}
	return binary.LittleEndian.Uint32(resp[1:5]), nil
}

// createSessionRoundTrip special-cases CreateSession's response: its
// body is 1 byte (result=1) on failure or 5 bytes (result=0, session id)
// on success, so the length can't be known until the result byte itself
// has arrived.
func (c *Conn) createSessionRoundTrip(body []byte) ([]byte, error) {
	if err := c.send(protocol.QueryCreateSession, body); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if len(c.readBuf) >= 5 {
			gotID := protocol.QueryID(binary.LittleEndian.Uint32(c.readBuf[0:4]))
			if gotID == protocol.QueryCreateSession {
				result := c.readBuf[4]
				wantLen := 1
				if result == 0 {
					wantLen = 5
				}
				if len(c.readBuf) >= 4+wantLen {
					resp := c.readBuf[4 : 4+wantLen]
					c.readBuf = c.readBuf[4+wantLen:]
					return resp, nil
				}
			}
		}
		if err := c.readMore(deadline); err != nil {
			return nil, err
		}
	}
}

// BeginRound sends a BeginRound request and waits for the immediate
// acknowledgment (not the later round-end notification).
func (c *Conn) BeginRound(sessionID uint32) error {
	body := make([]byte, 4)
	binary.LittleEndian.PutUint32(body, sessionID)

	resp, err := c.roundTrip(protocol.QueryBeginRound, body)
	if err != nil {
		return err
	}
	if resp[0] != 0 {
		return fmt.Errorf("client: begin round rejected")
	}
	return nil
}

// ActionPlayerInput sends one input command and waits for its ack.
func (c *Conn) ActionPlayerInput(sessionID uint32, player protocol.PlayerSlot, key protocol.InputKey, typ protocol.InputType) error {
	body := make([]byte, 10)
	binary.LittleEndian.PutUint32(body[0:4], sessionID)
	binary.LittleEndian.PutUint32(body[4:8], uint32(player))
	body[8] = byte(key)
	body[9] = byte(typ)

	resp, err := c.roundTrip(protocol.QueryActionPlayerInput, body)
	if err != nil {
		return err
	}
	if resp[0] != 0 {
		return fmt.Errorf("client: action player input rejected")
	}
	return nil
}

// AbortSession sends an AbortSession request and waits for its ack.
func (c *Conn) AbortSession(sessionID uint32) error {
	body := make([]byte, 4)
	binary.LittleEndian.PutUint32(body, sessionID)

	resp, err := c.roundTrip(protocol.QueryAbortSession, body)
	if err != nil {
		return err
	}
	if resp[0] != 0 {
		return fmt.Errorf("client: abort session rejected")
	}
	return nil
}

// WaitRoundResult blocks (up to timeout) for the unsolicited round-end
// notification on this connection: 4-byte header plus 4-byte winner.
func (c *Conn) WaitRoundResult(timeout time.Duration) (protocol.WinPlayer, error) {
	deadline := time.Now().Add(timeout)
	for {
		if len(c.readBuf) >= 8 {
			if protocol.QueryID(binary.LittleEndian.Uint32(c.readBuf[0:4])) == protocol.QueryBeginRound {
				winner := protocol.WinPlayer(binary.LittleEndian.Uint32(c.readBuf[4:8]))
				c.readBuf = c.readBuf[8:]
				return winner, nil
			}
		}
		if err := c.readMore(deadline); err != nil {
			return 0, err
		}
	}
}

// RecvState blocks for one state datagram on the UDP listener.
func (c *Conn) RecvState(timeout time.Duration) (protocol.ObjectState, error) {
	buf := make([]byte, 16)
	c.udp.SetReadDeadline(time.Now().Add(timeout))
	n, _, err := c.udp.ReadFromUDP(buf)
	if err != nil {
		return protocol.ObjectState{}, fmt.Errorf("client: reading state datagram: %w", err)
	}
	if n < 16 {
		return protocol.ObjectState{}, fmt.Errorf("client: short state datagram (%d bytes)", n)
	}
	return protocol.DecodeObjectState(buf), nil
}

func (c *Conn) send(id protocol.QueryID, body []byte) error {
	req := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(req[0:4], uint32(id))
	copy(req[4:], body)

	if _, err := c.tcp.Write(req); err != nil {
		return fmt.Errorf("client: writing request: %w", err)
	}
	return nil
}

// roundTrip sends a request whose response body is always exactly one
// result byte (every query except CreateSession).
func (c *Conn) roundTrip(id protocol.QueryID, body []byte) ([]byte, error) {
	if err := c.send(id, body); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if len(c.readBuf) >= 5 {
			gotID := protocol.QueryID(binary.LittleEndian.Uint32(c.readBuf[0:4]))
			if gotID == id {
				resp := c.readBuf[4:5]
				c.readBuf = c.readBuf[5:]
				return resp, nil
			}
		}
		if err := c.readMore(deadline); err != nil {
			return nil, err
		}
	}
}

func (c *Conn) readMore(deadline time.Time) error {
	c.tcp.SetReadDeadline(deadline)
	buf := make([]byte, 1024)
	n, err := c.tcp.Read(buf)
	if err != nil {
		return fmt.Errorf("client: reading response: %w", err)
	}
	c.readBuf = append(c.readBuf, buf[:n]...)
	return nil
}
