// Command vibratord is the haptic vibrator daemon: it opens a Linux
// force-feedback input device, serves the vibrator wire protocol over a
// local UNIX socket (and, where the platform supports it, a cross-core
// transport), and persists the user's chosen intensity across restarts.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"vibratord/internal/dispatch"
	"vibratord/internal/discover"
	"vibratord/internal/ffdev"
	"vibratord/internal/intensity"
	"vibratord/internal/transport"
)

const (
	defaultDevicePath = "/dev/input/event0"
	defaultSockPath   = "/run/vibratord.sock"
	defaultStateDir   = "/var/lib/vibratord"
	defaultRPMsgCPU   = "cp0"
	defaultRPMsgName  = "vibratord"
)

func main() {
	daemonMode := flag.Bool("daemon", false, "run with unbuffered stderr logging suitable for a service supervisor")
	devicePath := flag.String("device", "", "force-feedback input device path (skips USB discovery)")
	vidHex := flag.String("vendor", "", "USB vendor ID (hex) to discover the device by, when -device is not set")
	pidHex := flag.String("product", "", "USB product ID (hex) to discover the device by, when -device is not set")
	sockPath := flag.String("socket", defaultSockPath, "local UNIX socket path")
	stateDir := flag.String("state-dir", defaultStateDir, "directory for persisted intensity state")
	rpmsgCPU := flag.String("rpmsg-cpu", defaultRPMsgCPU, "peer CPU name for the cross-core transport")
	rpmsgName := flag.String("rpmsg-name", defaultRPMsgName, "channel name for the cross-core transport")
	noRPMsg := flag.Bool("no-rpmsg", false, "disable the cross-core transport entirely")
	flag.Parse()

	if *daemonMode {
		log.SetOutput(os.Stderr)
		log.SetFlags(0)
	} else {
		log.SetOutput(os.Stdout)
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}

	path, err := resolveDevicePath(*devicePath, *vidHex, *pidHex)
	if err != nil {
		log.Fatalf("device discovery: %v", err)
	}
	log.Printf("using force-feedback device %s", path)

	dev, err := ffdev.Open(path)
	if err != nil {
		log.Fatalf("open device: %v", err)
	}
	defer dev.Close()

	if _, err := dev.Probe(); err != nil {
		log.Fatalf("no usable force-feedback support on %s: %v", path, err)
	}

	store := intensity.NewFileStore(*stateDir)
	d := dispatch.New(dev, store)
	if err := d.LoadPersistedIntensity(); err != nil {
		log.Printf("intensity: falling back to default after load error: %v", err)
	}

	srv := transport.New(d)
	if err := os.MkdirAll(*stateDir, 0755); err != nil {
		log.Fatalf("state dir %s: %v", *stateDir, err)
	}
	if err := srv.AcquireLock(filepath.Join(*stateDir, "vibratord.lock")); err != nil {
		log.Fatalf("%v", err)
	}
	if err := srv.ListenUnix(*sockPath); err != nil {
		log.Fatalf("listen %s: %v", *sockPath, err)
	}
	if !*noRPMsg {
		srv.ListenRPMsg(*rpmsgCPU, *rpmsgName)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	log.Println("vibratord ready")
	select {
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
		srv.Stop()
		<-serveErr
	case err := <-serveErr:
		if err != nil {
			log.Fatalf("serve: %v", err)
		}
	}
	log.Println("vibratord stopped")
}

func resolveDevicePath(explicit, vidHex, pidHex string) (string, error) {
	if explicit != "" {
		return discover.ByPath(explicit)
	}
	if vidHex == "" && pidHex == "" {
		return discover.ByPath(defaultDevicePath)
	}
	if vidHex == "" || pidHex == "" {
		return "", fmt.Errorf("-vendor and -product must be given together")
	}
	vid, err := strconv.ParseUint(vidHex, 16, 16)
	if err != nil {
		return "", fmt.Errorf("invalid -vendor %q: %w", vidHex, err)
	}
	pid, err := strconv.ParseUint(pidHex, 16, 16)
	if err != nil {
		return "", fmt.Errorf("invalid -product %q: %w", pidHex, err)
	}
	return discover.ByVendorProduct(uint16(vid), uint16(pid))
}
