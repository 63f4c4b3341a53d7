// Package discover locates the input event node for the haptic actuator
// without claiming the USB interface: it walks sysfs the way the reference
// driver walks it for its own hidraw/evdev nodes, but stops at read-only
// enumeration since this daemon drives the actuator through the kernel's
// force-feedback ioctls on the evdev node, not over a raw USB endpoint.
package discover

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/gousb"
)

// ByPath is used when the caller (or an operator via a flag) already knows
// the device node and discovery should be skipped entirely.
func ByPath(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("discover: %s: %w", path, err)
	}
	return path, nil
}

// ByVendorProduct enumerates USB devices matching vid/pid and resolves the
// first match to its /dev/input/eventN node via sysfs. The gousb context is
// used purely for enumeration; no interface is claimed and every opened
// device handle is closed before returning.
func ByVendorProduct(vid, pid uint16) (string, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vid) && desc.Product == gousb.ID(pid)
	})
	if err != nil {
		return "", fmt.Errorf("discover: usb scan: %w", err)
	}
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()

	if len(devs) == 0 {
		return "", fmt.Errorf("discover: no USB device %04x:%04x found", vid, pid)
	}

	dev := devs[0]
	return EvdevForUSB(int(dev.Desc.Bus), int(dev.Desc.Address))
}

// EvdevForUSB finds the /dev/input/eventX node belonging to a specific USB
// bus/device address by walking /sys/class/input.
func EvdevForUSB(targetBus, targetAddr int) (string, error) {
	const base = "/sys/class/input"
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", fmt.Errorf("discover: reading %s: %w", base, err)
	}

	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "event") {
			continue
		}
		devPath := filepath.Join(base, entry.Name(), "device")
		if matchesUSBDevice(devPath, targetBus, targetAddr) {
			return filepath.Join("/dev/input", entry.Name()), nil
		}
	}
	return "", fmt.Errorf("discover: no evdev node found for USB bus %d addr %d", targetBus, targetAddr)
}

// matchesUSBDevice walks up the sysfs tree from startPath looking for the
// busnum/devnum pair sysfs attaches to a USB device directory.
func matchesUSBDevice(startPath string, targetBus, targetAddr int) bool {
	realPath, err := filepath.EvalSymlinks(startPath)
	if err != nil {
		return false
	}

	dir := realPath
	for i := 0; i < 6; i++ {
		busFile := filepath.Join(dir, "busnum")
		devFile := filepath.Join(dir, "devnum")
		if fileExists(busFile) && fileExists(devFile) {
			bus, _ := readIntFile(busFile)
			addr, _ := readIntFile(devFile)
			return bus == targetBus && addr == targetAddr
		}
		dir = filepath.Clean(filepath.Join(dir, ".."))
		if dir == "/" || dir == "." {
			break
		}
	}
	return false
}

func readIntFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
