package transport

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"vibratord/internal/dispatch"
	"vibratord/internal/ffdev"
	"vibratord/internal/intensity"
	"vibratord/internal/wire"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dev, _ := ffdev.NewWithMock()
	if _, err := dev.Probe(); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	store := intensity.NewFileStore(t.TempDir())
	d := dispatch.New(dev, store)
	if err := d.LoadPersistedIntensity(); err != nil {
		t.Fatalf("LoadPersistedIntensity: %v", err)
	}

	s := New(d)
	sockPath := filepath.Join(t.TempDir(), "vibratord.sock")
	if err := s.ListenUnix(sockPath); err != nil {
		t.Fatalf("ListenUnix: %v", err)
	}
	return s, sockPath
}

// TestServeRoundTrip dials the daemon's local socket like vibratorctl would
// and checks a full accept -> dispatch -> reply cycle.
func TestServeRoundTrip(t *testing.T) {
	s, sockPath := newTestServer(t)
	done := make(chan error, 1)
	go func() { done <- s.Serve() }()
	defer func() {
		s.Stop()
		<-done
	}()

	waitForSocket(t, sockPath)

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	req := wire.EncodeRequest(wire.GetCapabilities, wire.Command{Type: wire.GetCapabilities})
	if _, err := conn.Write(req); err != nil {
		t.Fatalf("write request: %v", err)
	}

	buf := make([]byte, wire.ResponseLen(wire.GetCapabilities))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFull(conn, buf); err != nil {
		t.Fatalf("read reply: %v", err)
	}

	reply, err := wire.DecodeReply(wire.GetCapabilities, buf)
	if err != nil {
		t.Fatalf("DecodeReply: %v", err)
	}
	if reply.Result != wire.OK || reply.Capabilities == 0 {
		t.Fatalf("reply = %+v, want OK with nonzero capabilities", reply)
	}
}

// TestServeShortFrameIsRejected exercises the length contract: a client that
// sends fewer bytes than the type's RequestLen gets EINVAL, not a hang or
// a decode panic.
func TestServeShortFrameIsRejected(t *testing.T) {
	s, sockPath := newTestServer(t)
	done := make(chan error, 1)
	go func() { done <- s.Serve() }()
	defer func() {
		s.Stop()
		<-done
	}()

	waitForSocket(t, sockPath)

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	full := wire.EncodeRequest(wire.SetIntensity, wire.Command{Type: wire.SetIntensity, Intensity: wire.IntensityHigh})
	if _, err := conn.Write(full[:wire.HeaderSize]); err != nil {
		t.Fatalf("write short request: %v", err)
	}
	conn.(*net.UnixConn).CloseWrite()

	buf := make([]byte, wire.ResponseLen(wire.SetIntensity))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFull(conn, buf); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	reply, err := wire.DecodeReply(wire.SetIntensity, buf)
	if err != nil {
		t.Fatalf("DecodeReply: %v", err)
	}
	if reply.Result != wire.EINVAL {
		t.Fatalf("short frame result = %v, want EINVAL", reply.Result)
	}
}

// TestListenUnixCleansUpStaleSocket confirms a leftover socket file from a
// crashed previous instance does not block a fresh bind.
func TestListenUnixCleansUpStaleSocket(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "vibratord.sock")
	if err := os.WriteFile(sockPath, []byte("stale"), 0600); err != nil {
		t.Fatalf("write stale socket file: %v", err)
	}

	dev, _ := ffdev.NewWithMock()
	store := intensity.NewFileStore(t.TempDir())
	d := dispatch.New(dev, store)
	s := New(d)
	if err := s.ListenUnix(sockPath); err != nil {
		t.Fatalf("ListenUnix over stale socket: %v", err)
	}
	for _, fd := range s.fds {
		unix.Close(int(fd))
	}
}

func TestAcquireLockRejectsSecondInstance(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "vibratord.lock")

	dev1, _ := ffdev.NewWithMock()
	s1 := New(dispatch.New(dev1, intensity.NewFileStore(t.TempDir())))
	if err := s1.AcquireLock(lockPath); err != nil {
		t.Fatalf("first AcquireLock: %v", err)
	}
	defer unix.Close(s1.lockFd)

	dev2, _ := ffdev.NewWithMock()
	s2 := New(dispatch.New(dev2, intensity.NewFileStore(t.TempDir())))
	if err := s2.AcquireLock(lockPath); err == nil {
		t.Fatal("expected second AcquireLock on the same path to fail")
	}
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("socket %s never appeared", path)
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
