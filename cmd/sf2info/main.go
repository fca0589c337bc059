package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/cwbudde/algo-midi2wav/sf2"
)

type presetInfo struct {
	Bank    int    `json:"bank"`
	Program int    `json:"program"`
	Name    string `json:"name"`
	Zones   int    `json:"zones"`
}

type bankInfo struct {
	Name        string       `json:"name"`
	Version     string       `json:"version"`
	SoundEngine string       `json:"sound_engine"`
	Copyright   string       `json:"copyright,omitempty"`
	Instruments int          `json:"instruments"`
	Samples     int          `json:"samples"`
	SamplePoint int          `json:"sample_points"`
	Presets     []presetInfo `json:"presets"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sf2info", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "Print bank info as JSON")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: sf2info [-json] bank.sf2 ...\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	code := 0
	for _, path := range fs.Args() {
		bank, err := sf2.LoadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			code = 1
			continue
		}
		info := describe(bank)
		if *asJSON {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(info); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
			continue
		}
		printInfo(stdout, path, info)
	}
	return code
}

func describe(b *sf2.Bank) bankInfo {
	info := bankInfo{
		Name:        b.Info.Name,
		Version:     fmt.Sprintf("%d.%02d", b.Info.VersionMajor, b.Info.VersionMinor),
		SoundEngine: b.Info.SoundEngine,
		Copyright:   b.Info.Copyright,
		Instruments: len(b.Instruments),
		Samples:     len(b.Samples),
		SamplePoint: len(b.Data),
	}
	for _, p := range b.Presets {
		info.Presets = append(info.Presets, presetInfo{Bank: p.Bank, Program: p.Program, Name: p.Name, Zones: len(p.Zones)})
	}
	sort.SliceStable(info.Presets, func(i, j int) bool {
		a, c := info.Presets[i], info.Presets[j]
		if a.Bank != c.Bank {
			return a.Bank < c.Bank
		}
		return a.Program < c.Program
	})
	return info
}

func printInfo(w io.Writer, path string, info bankInfo) {
	fmt.Fprintf(w, "%s\n", path)
	fmt.Fprintf(w, "  Name: %s (version %s, engine %s)\n", info.Name, info.Version, info.SoundEngine)
	if info.Copyright != "" {
		fmt.Fprintf(w, "  Copyright: %s\n", info.Copyright)
	}
	fmt.Fprintf(w, "  Instruments: %d, Samples: %d, Sample points: %d\n", info.Instruments, info.Samples, info.SamplePoint)
	fmt.Fprintf(w, "  Presets: %d\n", len(info.Presets))
	for _, p := range info.Presets {
		fmt.Fprintf(w, "    %03d:%03d %s\n", p.Bank, p.Program, p.Name)
	}
}
