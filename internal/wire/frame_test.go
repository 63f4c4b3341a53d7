package wire

import "testing"

func TestRequestResponseLenTable(t *testing.T) {
	cases := []struct {
		typ      CommandType
		wantReq  int
		wantResp int
	}{
		{Waveform, 132, 4},
		{Interval, 132, 4},
		{PredefinedEffect, 20, 20},
		{Primitive, 20, 20},
		{Start, 12, 4},
		{Stop, 8, 4},
		{SetAmplitude, 9, 4},
		{SetIntensity, 9, 4},
		{GetIntensity, 8, 12},
		{GetCapabilities, 8, 12},
		{Calibrate, 8, 8 + CalibValueMax},
		{SetCalibValue, 8 + CalibValueMax, 4},
	}
	for _, c := range cases {
		if got := RequestLen(c.typ); got != c.wantReq {
			t.Errorf("%s: RequestLen = %d, want %d", c.typ, got, c.wantReq)
		}
		if got := ResponseLen(c.typ); got != c.wantResp {
			t.Errorf("%s: ResponseLen = %d, want %d", c.typ, got, c.wantResp)
		}
	}
}

func TestWaveformRoundTrip(t *testing.T) {
	cmd := Command{
		Type:   Waveform,
		Repeat: -1,
		Length: 3,
	}
	cmd.Timings[0], cmd.Timings[1], cmd.Timings[2] = 500, 200, 100
	cmd.Amplitudes[0], cmd.Amplitudes[1], cmd.Amplitudes[2] = 200, 0, 128

	buf := EncodeRequest(Waveform, cmd)
	if len(buf) != RequestLen(Waveform) {
		t.Fatalf("encoded length = %d, want %d", len(buf), RequestLen(Waveform))
	}

	_, got, err := DecodeRequest(buf)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if got.Repeat != cmd.Repeat || got.Length != cmd.Length {
		t.Fatalf("got repeat/length %d/%d, want %d/%d", got.Repeat, got.Length, cmd.Repeat, cmd.Length)
	}
	if got.Timings != cmd.Timings || got.Amplitudes != cmd.Amplitudes {
		t.Fatalf("timings/amplitudes round-trip mismatch:\n got=%v/%v\nwant=%v/%v",
			got.Timings, got.Amplitudes, cmd.Timings, cmd.Amplitudes)
	}
}

func TestPrimitiveRoundTrip(t *testing.T) {
	cmd := Command{Type: Primitive, EffectID: 7, Amplitude: 0.75}
	buf := EncodeRequest(Primitive, cmd)
	_, got, err := DecodeRequest(buf)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if got.EffectID != 7 || got.Amplitude != 0.75 {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodeRequestShortFrame(t *testing.T) {
	buf := EncodeRequest(Waveform, Command{Type: Waveform, Length: 1})
	_, _, err := DecodeRequest(buf[:HeaderSize+10])
	if err == nil {
		t.Fatal("expected error for undersized waveform frame")
	}
}

func TestEncodeReplyBareResult(t *testing.T) {
	buf := EncodeReply(Stop, Reply{Result: OK})
	if len(buf) != ResultSize {
		t.Fatalf("Stop reply length = %d, want %d", len(buf), ResultSize)
	}
	got, err := DecodeReply(Stop, buf)
	if err != nil {
		t.Fatalf("DecodeReply: %v", err)
	}
	if got.Result != OK {
		t.Fatalf("Result = %d, want 0", got.Result)
	}
}

func TestEncodeReplyCapabilities(t *testing.T) {
	buf := EncodeReply(GetCapabilities, Reply{Result: OK, Capabilities: 0x7})
	if len(buf) != HeaderSize+4 {
		t.Fatalf("length = %d, want %d", len(buf), HeaderSize+4)
	}
	got, err := DecodeReply(GetCapabilities, buf)
	if err != nil {
		t.Fatalf("DecodeReply: %v", err)
	}
	if got.Capabilities != 0x7 {
		t.Fatalf("Capabilities = %d, want 7", got.Capabilities)
	}
}

func TestStatusFromErrno(t *testing.T) {
	if got := StatusFromErrno(22); got != EINVAL {
		t.Fatalf("StatusFromErrno(22) = %d, want EINVAL", got)
	}
	if got := StatusFromErrno(-22); got != EINVAL {
		t.Fatalf("StatusFromErrno(-22) = %d, want EINVAL", got)
	}
}
