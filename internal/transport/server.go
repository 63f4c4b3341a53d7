// Package transport implements the dual-socket acceptor described in
// SPEC_FULL.md §4.5: two listening stream sockets — one local UNIX domain
// socket, one cross-core RPMSG-style socket — sharing the same
// accept/read/dispatch/write/close code, driven by a single-threaded
// poll-based event loop.
package transport

import (
	"fmt"
	"log"
	"unsafe"

	"golang.org/x/sys/unix"

	"vibratord/internal/dispatch"
	"vibratord/internal/wire"
)

// maxFrameSize is the largest request any command type can carry
// (Waveform/Interval's payload), used to size the read buffer.
const maxFrameSize = wire.HeaderSize + 1 + 1 + 2 + 24 + 24*4

// pollTimeoutMs bounds how long Serve blocks in unix.Poll before it checks
// for a shutdown request. The reference daemon's poll() blocks forever
// because it has no runtime shutdown path; this daemon does, via signals,
// so it trades a small amount of idle wakeup for prompt Stop() responsiveness.
const pollTimeoutMs = 500

// Server owns zero or more listening sockets and the dispatcher they feed.
type Server struct {
	dispatcher *dispatch.Dispatcher
	fds        []int32
	stopping   chan struct{}
	lockFd     int
}

// New returns a Server with no listeners bound yet.
func New(d *dispatch.Dispatcher) *Server {
	return &Server{dispatcher: d, stopping: make(chan struct{}), lockFd: -1}
}

// AcquireLock takes an exclusive, non-blocking flock on path, refusing to
// start a second daemon instance against the same socket/state directory.
// The lock is held until Serve returns, which closes the lock file, or
// until the process exits.
func (s *Server) AcquireLock(path string) error {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("transport: open lock file %s: %w", path, err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		return fmt.Errorf("transport: another instance holds %s: %w", path, err)
	}
	s.lockFd = fd
	return nil
}

// ListenUnix binds the local transport at path, removing any stale socket
// left behind by a crashed previous instance first.
func (s *Server) ListenUnix(path string) error {
	fd, err := bindUnixListener(path)
	if err != nil {
		return fmt.Errorf("transport: unix listen %s: %w", path, err)
	}
	s.fds = append(s.fds, int32(fd))
	return nil
}

// ListenRPMsg binds the cross-core transport. Unlike ListenUnix, a failure
// here is logged and treated as non-fatal: cross-core delivery is an
// optional deployment topology, not a hard startup requirement, since the
// address family may not exist on every kernel this daemon runs under.
func (s *Server) ListenRPMsg(cpu, name string) {
	fd, err := bindRPMsgListener(cpu, name)
	if err != nil {
		log.Printf("transport: rpmsg listen unavailable, continuing with local transport only: %v", err)
		return
	}
	s.fds = append(s.fds, int32(fd))
}

// Stop unblocks Serve and closes all listening sockets.
func (s *Server) Stop() {
	close(s.stopping)
}

// Serve runs the event loop until Stop is called. It never spawns a
// goroutine per connection: accept, read, dispatch, write and close all
// happen synchronously on the calling goroutine, matching the
// single-threaded cooperative model in SPEC_FULL.md §5.
func (s *Server) Serve() error {
	defer func() {
		for _, fd := range s.fds {
			unix.Close(int(fd))
		}
		if s.lockFd >= 0 {
			unix.Close(s.lockFd)
		}
	}()

	pfds := make([]unix.PollFd, len(s.fds))
	for i, fd := range s.fds {
		pfds[i] = unix.PollFd{Fd: fd, Events: unix.POLLIN}
	}

	for {
		select {
		case <-s.stopping:
			return nil
		default:
		}

		n, err := unix.Poll(pfds, pollTimeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("transport: poll: %w", err)
		}
		if n == 0 {
			continue
		}
		for _, pfd := range pfds {
			if pfd.Revents&unix.POLLIN != 0 {
				s.acceptAndServe(int(pfd.Fd))
			}
		}
	}
}

func (s *Server) acceptAndServe(listenFd int) {
	connFd, err := acceptRaw(listenFd)
	if err != nil {
		log.Printf("transport: accept: %v", err)
		return
	}
	defer unix.Close(connFd)

	buf, err := readFrame(connFd)
	if err != nil {
		log.Printf("transport: read: %v", err)
		return
	}
	if len(buf) < wire.HeaderSize {
		return
	}

	typ := wire.CommandType(buf[4])
	var reply wire.Reply
	if len(buf) < wire.RequestLen(typ) {
		reply = wire.Reply{Result: wire.EINVAL}
	} else if _, cmd, decodeErr := wire.DecodeRequest(buf); decodeErr != nil {
		reply = wire.Reply{Result: wire.EINVAL}
	} else {
		reply = s.dispatcher.Dispatch(cmd)
	}

	out := wire.EncodeReply(typ, reply)
	if _, err := unix.Write(connFd, out); err != nil {
		log.Printf("transport: write reply: %v", err)
	}
}

// readFrame reads until it has at least a full header, then continues
// until it has the full request for the declared type or the peer closes
// the connection. Clients send the full frame before listening for a
// reply, so a short read here means either a malformed client or a closed
// connection, both handled by the caller's length check.
func readFrame(fd int) ([]byte, error) {
	buf := make([]byte, 0, maxFrameSize)
	chunk := make([]byte, 256)
	for {
		n, err := unix.Read(fd, chunk)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return buf, err
		}
		if n == 0 {
			return buf, nil // peer closed
		}
		buf = append(buf, chunk[:n]...)
		if len(buf) >= wire.HeaderSize {
			need := wire.RequestLen(wire.CommandType(buf[4]))
			if len(buf) >= need {
				return buf[:need], nil
			}
		}
	}
}

func acceptRaw(fd int) (int, error) {
	nfd, _, errno := unix.Syscall(unix.SYS_ACCEPT, uintptr(fd), 0, 0)
	if errno != 0 {
		return -1, errno
	}
	return int(nfd), nil
}

func bindUnixListener(path string) (int, error) {
	_ = unix.Unlink(path)

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, 16); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func bindRPMsgListener(cpu, name string) (int, error) {
	fd, err := unix.Socket(afRPMsg, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	addr := newRPMsgAddr(cpu, name)
	raw := addr.bytes()
	if _, _, errno := unix.Syscall(unix.SYS_BIND, uintptr(fd), uintptr(unsafe.Pointer(&raw[0])), uintptr(len(raw))); errno != 0 {
		unix.Close(fd)
		return -1, errno
	}
	if err := unix.Listen(fd, 16); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}
