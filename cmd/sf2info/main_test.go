package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/algo-midi2wav/internal/testbank"
)

func writeBank(t *testing.T, opts testbank.Options) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bank.sf2")
	if err := os.WriteFile(path, testbank.Build(opts), 0o644); err != nil {
		t.Fatalf("write bank: %v", err)
	}
	return path
}

func TestRunListsPresetsInBankOrder(t *testing.T) {
	path := writeBank(t, testbank.Options{Programs: []testbank.Program{
		{Name: "Drums", Bank: 128, Program: 0},
		{Name: "Strings", Bank: 0, Program: 48},
		{Name: "Piano", Bank: 0, Program: 0},
	}})
	var stdout, stderr bytes.Buffer
	if code := run([]string{path}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	out := stdout.String()
	piano := strings.Index(out, "000:000 Piano")
	strings48 := strings.Index(out, "000:048 Strings")
	drums := strings.Index(out, "128:000 Drums")
	if piano < 0 || strings48 < piano || drums < strings48 {
		t.Fatalf("unexpected preset listing:\n%s", out)
	}
	if !strings.Contains(out, "Name: Test Bank") {
		t.Fatalf("expected bank name in output:\n%s", out)
	}
}

func TestRunJSON(t *testing.T) {
	path := writeBank(t, testbank.Options{})
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-json", path}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	var info bankInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Instruments != 1 || info.Samples != 1 || len(info.Presets) != 1 || info.Version != "2.01" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestRunErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != 2 {
		t.Fatalf("expected usage exit 2, got %d", code)
	}
	if code := run([]string{filepath.Join(t.TempDir(), "missing.sf2")}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1 for missing file, got %d", code)
	}
}
