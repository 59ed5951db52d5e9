// Package ioloop is the single-threaded, non-blocking I/O front-end: a
// level-triggered epoll readiness loop that accepts connections, drains
// partial reads into per-client buffers, dispatches decoded requests, and
// drives the scheduler's tick cadence.
package ioloop

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"pongserver/internal/config"
	"pongserver/internal/metrics"
	"pongserver/internal/protocol"
	"pongserver/internal/registry"
	"pongserver/internal/scheduler"
)

const (
	recvChunkSize  = 1024
	maxEpollEvents = 256
	pollTimeoutMS  = 5
)

// Server owns the listen socket, the epoll instance, every connected
// client, and the subsystems a tick drives: the session registry and the
// worker pool.
type Server struct {
	cfg     config.Config
	log     zerolog.Logger
	metrics *metrics.Metrics

	epfd     int
	listenFD int
	clients  map[int]*client

	udpConn  *net.UDPConn
	registry *registry.Registry
	pool     *scheduler.Pool

	lastTick time.Time
}

// New builds the listen socket, epoll instance, shared UDP socket,
// registry, and worker pool, but does not start accepting connections
// until Run is called.
func New(cfg config.Config, log zerolog.Logger, m *metrics.Metrics) (*Server, error) {
	listenFD, err := newListenSocket(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("ioloop: listen socket: %w", err)
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		unix.Close(listenFD)
		return nil, fmt.Errorf("ioloop: epoll_create1: %w", err)
	}
	if err := addEpollInterest(epfd, listenFD, unix.EPOLLIN); err != nil {
		unix.Close(listenFD)
		unix.Close(epfd)
		return nil, fmt.Errorf("ioloop: registering listen socket: %w", err)
	}

	udpConn, err := newSharedUDPSocket()
	if err != nil {
		unix.Close(listenFD)
		unix.Close(epfd)
		return nil, err
	}

	return &Server{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		epfd:     epfd,
		listenFD: listenFD,
		clients:  make(map[int]*client),
		udpConn:  udpConn,
		registry: registry.New(cfg.MaxSessions),
		pool:     scheduler.New(cfg.NumWorkers),
		lastTick: time.Now(),
	}, nil
}

func newListenSocket(port uint16) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}

	addr := &unix.SockaddrInet4{Port: int(port)}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func addEpollInterest(epfd, fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func modEpollInterest(epfd, fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

// Run drives the readiness loop until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	events := make([]unix.EpollEvent, maxEpollEvents)
	tickDuration := s.cfg.TickDuration()

	for {
		select {
		case <-ctx.Done():
			return s.shutdown()
		default:
		}

		n, err := unix.EpollWait(s.epfd, events, pollTimeoutMS)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("ioloop: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == s.listenFD {
				s.acceptAll()
				continue
			}
			s.serviceClient(fd, events[i].Events)
		}

		if time.Since(s.lastTick) >= tickDuration {
			s.runTickEpilogue()
			s.lastTick = time.Now()
		}
	}
}

func (s *Server) acceptAll() {
	for {
		fd, sa, err := unix.Accept4(s.listenFD, unix.SOCK_NONBLOCK)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return
			}
			s.log.Warn().Err(err).Msg("accept failed")
			return
		}

		ip := peerIP(sa)
		c := newClient(s.epfd, fd, ip)
		s.clients[fd] = c
		if err := addEpollInterest(s.epfd, fd, unix.EPOLLIN); err != nil {
			s.log.Warn().Err(err).Msg("registering accepted client failed")
			c.close()
			delete(s.clients, fd)
			continue
		}
		s.log.Info().Str("peer", ip.String()).Int("fd", fd).Msg("client connected")
	}
}

func peerIP(sa unix.Sockaddr) net.IP {
	if v4, ok := sa.(*unix.SockaddrInet4); ok {
		return net.IPv4(v4.Addr[0], v4.Addr[1], v4.Addr[2], v4.Addr[3])
	}
	return net.IPv4zero
}

func (s *Server) serviceClient(fd int, readyEvents uint32) {
	c, ok := s.clients[fd]
	if !ok {
		return
	}

	if readyEvents&unix.EPOLLOUT != 0 && len(c.sendBuf) > 0 {
		s.flushSendBuffer(c)
	}

	if readyEvents&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		if s.readIntoClient(c) {
			s.dispatchDecoded(c)
		}
	}
}

func (s *Server) flushSendBuffer(c *client) {
	n, err := unix.Write(c.fd, c.sendBuf)
	if err != nil {
		if !errors.Is(err, unix.EAGAIN) {
			s.log.Warn().Err(err).Int("fd", c.fd).Msg("send failed")
		}
		return
	}
	c.sendBuf = c.sendBuf[n:]
	if len(c.sendBuf) == 0 {
		_ = modEpollInterest(s.epfd, c.fd, unix.EPOLLIN)
	}
}

// readIntoClient issues one receive; it returns false if the client was
// torn down (clean close or error) so the caller skips decoding.
func (s *Server) readIntoClient(c *client) bool {
	buf := make([]byte, recvChunkSize)
	n, err := unix.Read(c.fd, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return true
		}
		s.destroyClient(c)
		return false
	}
	if n == 0 {
		s.destroyClient(c)
		return false
	}
	c.recvBuf = append(c.recvBuf, buf[:n]...)
	return true
}

func (s *Server) dispatchDecoded(c *client) {
	h := &clientHandler{server: s, client: c}
	var out []byte
	consumed, drop := protocol.Decode(c.recvBuf, h, &out)
	c.recvBuf = c.recvBuf[consumed:]

	c.enqueueSend(out)

	if drop {
		s.log.Warn().Int("fd", c.fd).Msg("unknown query id, dropping connection")
		s.destroyClient(c)
	}
}

// destroyClient tears down a client and every session it owns. This only
// ever runs on the I/O thread between ticks, so it never races the
// scheduler's per-tick session ownership.
func (s *Server) destroyClient(c *client) {
	for _, id := range append([]uint32(nil), c.sessionIDs...) {
		_ = s.registry.Remove(id)
	}
	_ = unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, c.fd, nil)
	c.close()
	delete(s.clients, c.fd)
}

// runTickEpilogue partitions running sessions across the worker pool,
// waits for completion, emits round-result responses for sessions that
// ended this tick, and frees them.
func (s *Server) runTickEpilogue() {
	start := time.Now()
	running := s.registry.Running()

	s.pool.RunTick(running, start)

	for _, sess := range running {
		if !sess.IsRoundRunning() && sess.IsSessionEnded() {
			sess.EnqueueRoundResult()
			s.metrics.RoundsEnded.WithLabelValues(resultLabel(sess.GetRoundResult())).Inc()
		}
	}

	s.registry.RemoveEnded()

	s.metrics.TicksTotal.Inc()
	s.metrics.TickDuration.Observe(time.Since(start).Seconds())
	s.metrics.LiveSessions.Set(float64(s.registry.Len()))
}

func resultLabel(r protocol.WinPlayer) string {
	switch r {
	case protocol.ResultWinA:
		return "win_a"
	case protocol.ResultWinB:
		return "win_b"
	default:
		return "timeout"
	}
}

func (s *Server) shutdown() error {
	s.pool.Shutdown()
	for _, c := range s.clients {
		c.close()
	}
	unix.Close(s.listenFD)
	unix.Close(s.epfd)
	return s.udpConn.Close()
}
