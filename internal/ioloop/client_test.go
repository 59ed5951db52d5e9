package ioloop

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"golang.org/x/sys/unix"
)

func TestClientEnqueueResponseAppends(t *testing.T) {
	c := newClient(-1, -1, net.IPv4zero)
	c.EnqueueResponse([]byte{1, 2, 3})
	c.EnqueueResponse([]byte{4, 5})

	assert.Equal(t, []byte{1, 2, 3, 4, 5}, c.sendBuf)
}

func TestClientSessionLifecycle(t *testing.T) {
	c := newClient(-1, -1, net.IPv4zero)
	c.addSession(7)
	c.addSession(9)

	assert.Equal(t, []uint32{7, 9}, c.sessionIDs)

	c.removeSession(7)
	assert.Equal(t, []uint32{9}, c.sessionIDs)
}

func TestPeerIPExtractsInet4Address(t *testing.T) {
	sa := &unix.SockaddrInet4{Addr: [4]byte{203, 0, 113, 7}}
	ip := peerIP(sa)
	assert.Equal(t, net.IPv4(203, 0, 113, 7), ip)
}
