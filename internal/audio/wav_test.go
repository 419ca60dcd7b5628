package audio

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAVPCM16LEHeader(t *testing.T) {
	pcm := make([]byte, 8) // two stereo frames
	wav, err := EncodeWAVPCM16LE(pcm, 48000, 2)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}
	if len(wav) != 44+len(pcm) {
		t.Fatalf("len(wav) = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 2 {
		t.Fatalf("channels = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 48000 {
		t.Fatalf("sample rate = %d, want 48000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Fatalf("data size = %d, want %d", got, len(pcm))
	}
}

func TestEncodeWAVPCM16LERejectsMisalignedInput(t *testing.T) {
	if _, err := EncodeWAVPCM16LE(make([]byte, 6), 48000, 2); err == nil {
		t.Fatalf("accepted pcm not aligned to stereo frames")
	}
	if _, err := EncodeWAVPCM16LE(make([]byte, 4), 48000, 3); err == nil {
		t.Fatalf("accepted unsupported channel count")
	}
}
