package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cwbudde/algo-midi2wav/internal/testbank"
)

type fixture struct {
	dir  string
	mid  string
	bank string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{dir: dir, mid: filepath.Join(dir, "song.mid"), bank: filepath.Join(dir, "bank.sf2")}
	if err := os.WriteFile(f.bank, testbank.Build(testbank.Options{}), 0o644); err != nil {
		t.Fatalf("write bank: %v", err)
	}
	writeMIDI(t, f.mid)
	return f
}

// writeMIDI writes key 60 held for one second at 120 BPM.
func writeMIDI(t *testing.T, path string) {
	t.Helper()
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(960, midi.NoteOff(0, 60))
	tr.Close(0)
	s := smf.NewSMF1()
	s.TimeFormat = smf.MetricTicks(480)
	if err := s.Add(tr); err != nil {
		t.Fatalf("add track: %v", err)
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("write smf: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write midi: %v", err)
	}
}

func dataSize(t *testing.T, path string) uint32 {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if len(b) < 44 || string(b[36:40]) != "data" {
		t.Fatalf("%s: not a canonical WAV file", path)
	}
	return binary.LittleEndian.Uint32(b[40:44])
}

func TestRunRendersOneSecond(t *testing.T) {
	f := newFixture(t)
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-i", f.mid, "-s", f.bank}, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if got := dataSize(t, filepath.Join(f.dir, "song.wav")); got != 44100*2*2 {
		t.Fatalf("expected %d data bytes, got %d", 44100*2*2, got)
	}
	for _, want := range []string{"Reading MIDI file", "Rendering to buffer", "Wrote"} {
		if !strings.Contains(stdout.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, stdout.String())
		}
	}
}

func TestRunLongFlagsAndBitDepth(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(f.dir, "out.wav")
	args := []string{"-midi-file", f.mid, "-soundfont-file", f.bank, "-output-file", out, "-bit-depth", "24", "-sample-rate", "22050", "-no-effects", "-q"}
	var stdout, stderr bytes.Buffer
	if code := run(args, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if got := dataSize(t, out); got != 22050*3*2 {
		t.Fatalf("expected %d data bytes, got %d", 22050*3*2, got)
	}
	if stdout.Len() != 0 {
		t.Fatalf("expected no progress output with -q, got %q", stdout.String())
	}
}

func TestRunErrors(t *testing.T) {
	f := newFixture(t)
	truncated := filepath.Join(f.dir, "truncated.sf2")
	full := testbank.Build(testbank.Options{})
	if err := os.WriteFile(truncated, full[:len(full)/2], 0o644); err != nil {
		t.Fatalf("write truncated bank: %v", err)
	}
	out := filepath.Join(f.dir, "out.wav")

	cases := []struct {
		name string
		args []string
		code int
	}{
		{"missing inputs", []string{"-s", f.bank}, exitUsage},
		{"unknown flag", []string{"-x"}, exitUsage},
		{"output with batch", []string{"-s", f.bank, "-o", out, f.mid, f.mid}, exitUsage},
		// The bit depth is rejected before the bank is even opened.
		{"bit depth", []string{"-i", f.mid, "-s", filepath.Join(f.dir, "missing.sf2"), "-o", out, "-d", "12"}, exitError},
		{"truncated bank", []string{"-i", f.mid, "-s", truncated, "-o", out}, exitError},
		{"missing midi", []string{"-i", filepath.Join(f.dir, "missing.mid"), "-s", f.bank, "-o", out}, exitError},
		{"bad interpolation", []string{"-i", f.mid, "-s", f.bank, "-o", out, "-interp", "sinc"}, exitError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tc.args, &stdout, &stderr); code != tc.code {
				t.Fatalf("expected exit %d, got %d: %s", tc.code, code, stderr.String())
			}
			if _, err := os.Stat(out); !os.IsNotExist(err) {
				t.Fatalf("expected no output file, stat err=%v", err)
			}
		})
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--help"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("expected exit 0 for --help, got %d", code)
	}
	if !strings.Contains(stderr.String(), "-soundfont-file") {
		t.Fatalf("expected usage text, got %q", stderr.String())
	}
}

func TestRunBatch(t *testing.T) {
	f := newFixture(t)
	second := filepath.Join(f.dir, "second.mid")
	writeMIDI(t, second)
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-s", f.bank, "-j", "2", "-q", f.mid, second}, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	for _, out := range []string{"song.wav", "second.wav"} {
		if got := dataSize(t, filepath.Join(f.dir, out)); got != 44100*2*2 {
			t.Fatalf("%s: expected %d data bytes, got %d", out, 44100*2*2, got)
		}
	}
}

func TestRunConfigFile(t *testing.T) {
	f := newFixture(t)
	cfg := filepath.Join(f.dir, "render.json")
	if err := os.WriteFile(cfg, []byte(`{"bit_depth": 8, "reverb": {"enabled": false}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	out := filepath.Join(f.dir, "cfg.wav")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfg, "-i", f.mid, "-s", f.bank, "-o", out, "-q"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if got := dataSize(t, out); got != 44100*2 {
		t.Fatalf("expected 8-bit data size %d, got %d", 44100*2, got)
	}

	// Flags override the file.
	if code := run([]string{"-config", cfg, "-d", "16", "-i", f.mid, "-s", f.bank, "-o", out, "-q"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if got := dataSize(t, out); got != 44100*2*2 {
		t.Fatalf("expected 16-bit data size, got %d", got)
	}
}
