package ioloop

import (
	"net"

	"golang.org/x/sys/unix"
)

const initialBufferCapacity = 4096

// client is one accepted, non-blocking TCP connection: its raw socket fd,
// the epoll instance it's registered with (needed to re-arm EPOLLOUT when
// data is queued outside the read-dispatch path), the peer's address (used
// to resolve a session's UDP stream target), accumulated recv/send
// buffers, and the set of session ids it owns.
type client struct {
	fd     int
	epfd   int
	peerIP net.IP

	recvBuf    []byte
	sendBuf    []byte
	sessionIDs []uint32
}

func newClient(epfd, fd int, peerIP net.IP) *client {
	return &client{
		fd:      fd,
		epfd:    epfd,
		peerIP:  peerIP,
		recvBuf: make([]byte, 0, initialBufferCapacity),
		sendBuf: make([]byte, 0, initialBufferCapacity),
	}
}

// enqueueSend appends b to the outbound buffer and, if that leaves data
// pending, arms EPOLLOUT so the next epoll_wait actually flushes it. This
// is the single path onto sendBuf: both request responses (dispatchDecoded)
// and unsolicited pushes (EnqueueResponse, from a tick epilogue with no
// triggering read) go through it, so neither can silently starve for lack
// of write readiness.
func (c *client) enqueueSend(b []byte) {
	if len(b) == 0 {
		return
	}
	c.sendBuf = append(c.sendBuf, b...)
	_ = modEpollInterest(c.epfd, c.fd, unix.EPOLLIN|unix.EPOLLOUT)
}

// EnqueueResponse implements session.Owner: round-result notifications
// arrive with no client read to piggyback write-readiness on, so they must
// re-arm EPOLLOUT themselves via enqueueSend.
func (c *client) EnqueueResponse(b []byte) {
	c.enqueueSend(b)
}

func (c *client) addSession(id uint32) {
	c.sessionIDs = append(c.sessionIDs, id)
}

func (c *client) removeSession(id uint32) {
	for i, v := range c.sessionIDs {
		if v == id {
			c.sessionIDs = append(c.sessionIDs[:i], c.sessionIDs[i+1:]...)
			return
		}
	}
}

func (c *client) close() {
	_ = unix.Close(c.fd)
}
