// Command vibratorctl is an administrative and diagnostic client for
// vibratord: it dials the daemon's local socket and issues one wire-protocol
// request per invocation.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vibratord/internal/vibctl"
	"vibratord/internal/wire"
)

var sockPath string

var rootCmd = &cobra.Command{
	Use:   "vibratorctl",
	Short: "Control the vibrator daemon",
	Long: `vibratorctl is a command-line tool for driving and inspecting the
haptic vibrator daemon over its local control socket.

It provides direct access to waveform playback, predefined effects,
intensity control and calibration.`,
}

func client() *vibctl.Client { return vibctl.New(sockPath) }

func report(name string, reply wire.Reply, err error) error {
	if err != nil {
		return err
	}
	if reply.Result != wire.OK {
		return fmt.Errorf("%s: %s", name, reply.Result)
	}
	return nil
}

var waveformCmd = &cobra.Command{
	Use:   "waveform <timings-ms,...> <amplitudes,...> <repeat>",
	Short: "Play a timings/amplitudes waveform",
	Long: `timings and amplitudes are comma-separated lists of equal length
(at most 24 entries). repeat is the zero-based step index to loop back to,
or -1 for a one-shot.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		timings, err := parseUintList(args[0])
		if err != nil {
			return fmt.Errorf("timings: %w", err)
		}
		amps, err := parseByteList(args[1])
		if err != nil {
			return fmt.Errorf("amplitudes: %w", err)
		}
		if len(timings) != len(amps) {
			return fmt.Errorf("timings and amplitudes must have the same length")
		}
		repeat, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("repeat: %w", err)
		}

		c := wire.Command{Type: wire.Waveform, Length: uint8(len(timings)), Repeat: int8(repeat)}
		copy(c.Timings[:], timings)
		copy(c.Amplitudes[:], amps)

		reply, err := client().Call(wire.Waveform, c)
		if err := report("waveform", reply, err); err != nil {
			return err
		}
		fmt.Println("waveform started")
		return nil
	},
}

var intervalCmd = &cobra.Command{
	Use:   "interval <duration-ms> <interval-ms> <count>",
	Short: "Play a fixed pulse repeated count times",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		duration, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		interval, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("interval: %w", err)
		}
		count, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("count: %w", err)
		}

		c := wire.Command{Type: wire.Interval, Count: int16(count)}
		c.Timings[0] = uint32(duration)
		c.Timings[1] = uint32(interval)

		reply, err := client().Call(wire.Interval, c)
		if err := report("interval", reply, err); err != nil {
			return err
		}
		fmt.Println("interval started")
		return nil
	},
}

var predefinedCmd = &cobra.Command{
	Use:   "predefined <effect-id> <light|medium|strong|default>",
	Short: "Play a driver-predefined effect",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("effect-id: %w", err)
		}
		strength, err := parseStrength(args[1])
		if err != nil {
			return err
		}

		reply, err := client().Call(wire.PredefinedEffect, wire.Command{
			Type: wire.PredefinedEffect, EffectID: int32(id), Strength: strength,
		})
		if err := report("predefined", reply, err); err != nil {
			return err
		}
		fmt.Printf("effect %d playing, length %dms\n", reply.EffectID, reply.PlayLengthMs)
		return nil
	},
}

var primitiveCmd = &cobra.Command{
	Use:   "primitive <effect-id> <amplitude 0..1>",
	Short: "Play a driver-predefined effect at an explicit amplitude",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("effect-id: %w", err)
		}
		amp, err := strconv.ParseFloat(args[1], 32)
		if err != nil {
			return fmt.Errorf("amplitude: %w", err)
		}

		reply, err := client().Call(wire.Primitive, wire.Command{
			Type: wire.Primitive, EffectID: int32(id), Amplitude: float32(amp),
		})
		if err := report("primitive", reply, err); err != nil {
			return err
		}
		fmt.Printf("effect %d playing, length %dms\n", reply.EffectID, reply.PlayLengthMs)
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start <timeout-ms>",
	Short: "Start constant vibration for a fixed duration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		reply, err := client().Call(wire.Start, wire.Command{Type: wire.Start, TimeoutMs: uint32(timeout)})
		if err := report("start", reply, err); err != nil {
			return err
		}
		fmt.Println("started")
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop any playing waveform, interval or effect",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := client().Call(wire.Stop, wire.Command{Type: wire.Stop})
		if err := report("stop", reply, err); err != nil {
			return err
		}
		fmt.Println("stopped")
		return nil
	},
}

var setAmplitudeCmd = &cobra.Command{
	Use:   "set-amplitude <0..255>",
	Short: "Set the raw output gain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amp, err := strconv.Atoi(args[0])
		if err != nil || amp < 0 || amp > 255 {
			return fmt.Errorf("amplitude must be 0..255")
		}
		reply, err := client().Call(wire.SetAmplitude, wire.Command{Type: wire.SetAmplitude, RawAmplitude: uint8(amp)})
		if err := report("set-amplitude", reply, err); err != nil {
			return err
		}
		fmt.Printf("amplitude set to %d\n", amp)
		return nil
	},
}

var intensityCmd = &cobra.Command{
	Use:   "intensity",
	Short: "Get or set the persisted master intensity",
}

var intensityGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current intensity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := client().Call(wire.GetIntensity, wire.Command{Type: wire.GetIntensity})
		if err := report("intensity get", reply, err); err != nil {
			return err
		}
		fmt.Println(intensityName(reply.Intensity))
		return nil
	},
}

var intensitySetCmd = &cobra.Command{
	Use:   "set <off|low|medium|high>",
	Short: "Set and persist the master intensity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := parseIntensity(args[0])
		if err != nil {
			return err
		}
		reply, err := client().Call(wire.SetIntensity, wire.Command{Type: wire.SetIntensity, Intensity: v})
		if err := report("intensity set", reply, err); err != nil {
			return err
		}
		fmt.Printf("intensity set to %s\n", intensityName(v))
		return nil
	},
}

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "Print the device capability bitmask",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := client().Call(wire.GetCapabilities, wire.Command{Type: wire.GetCapabilities})
		if err := report("capabilities", reply, err); err != nil {
			return err
		}
		fmt.Printf("capabilities: 0x%08x\n", uint32(reply.Capabilities))
		return nil
	},
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Read the current calibration blob",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, err := client().Call(wire.Calibrate, wire.Command{Type: wire.Calibrate})
		if err := report("calibrate", reply, err); err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(reply.Calib[:]))
		return nil
	},
}

var setCalibValueCmd = &cobra.Command{
	Use:   "set-calib-value <hex>",
	Short: "Write a calibration blob (hex-encoded, up to 32 bytes)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := hex.DecodeString(args[0])
		if err != nil {
			return fmt.Errorf("invalid hex: %w", err)
		}
		if len(raw) > wire.CalibValueMax {
			return fmt.Errorf("calibration blob too long: %d bytes, max %d", len(raw), wire.CalibValueMax)
		}
		var c wire.Command
		c.Type = wire.SetCalibValue
		copy(c.Calib[:], raw)

		reply, err := client().Call(wire.SetCalibValue, c)
		if err := report("set-calib-value", reply, err); err != nil {
			return err
		}
		fmt.Println("calibration written")
		return nil
	},
}

func parseUintList(s string) ([]uint32, error) {
	parts := strings.Split(s, ",")
	out := make([]uint32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, err
		}
		out[i] = uint32(v)
	}
	return out, nil
}

func parseByteList(s string) ([]uint8, error) {
	parts := strings.Split(s, ",")
	out := make([]uint8, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return nil, err
		}
		out[i] = uint8(v)
	}
	return out, nil
}

func parseStrength(s string) (wire.Strength, error) {
	switch strings.ToLower(s) {
	case "light":
		return wire.StrengthLight, nil
	case "medium":
		return wire.StrengthMedium, nil
	case "strong":
		return wire.StrengthStrong, nil
	case "default":
		return wire.StrengthDefault, nil
	default:
		return 0, fmt.Errorf("invalid strength %q (want light/medium/strong/default)", s)
	}
}

func parseIntensity(s string) (wire.Intensity, error) {
	switch strings.ToLower(s) {
	case "off":
		return wire.IntensityOff, nil
	case "low":
		return wire.IntensityLow, nil
	case "medium":
		return wire.IntensityMedium, nil
	case "high":
		return wire.IntensityHigh, nil
	default:
		return 0, fmt.Errorf("invalid intensity %q (want off/low/medium/high)", s)
	}
}

func intensityName(v wire.Intensity) string {
	switch v {
	case wire.IntensityOff:
		return "off"
	case wire.IntensityLow:
		return "low"
	case wire.IntensityMedium:
		return "medium"
	case wire.IntensityHigh:
		return "high"
	default:
		return fmt.Sprintf("intensity(%d)", uint8(v))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sockPath, "socket", "/run/vibratord.sock", "daemon control socket path")

	intensityCmd.AddCommand(intensityGetCmd)
	intensityCmd.AddCommand(intensitySetCmd)

	rootCmd.AddCommand(waveformCmd)
	rootCmd.AddCommand(intervalCmd)
	rootCmd.AddCommand(predefinedCmd)
	rootCmd.AddCommand(primitiveCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(setAmplitudeCmd)
	rootCmd.AddCommand(intensityCmd)
	rootCmd.AddCommand(capabilitiesCmd)
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(setCalibValueCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
