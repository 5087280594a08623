// This tool removes a fixed leading delay from a WAV, FLAC, or AIFF file
// in place. The file is rewritten to a temporary sibling first and only
// renamed over the original on success, keeping the original modification
// time. The access time is set to the modification time as well, since
// the portable stat result does not expose it.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/delaytrim"
)

var (
	flagDelay      = flag.Float64("delay", 0, "Leading delay to remove, in milliseconds (may be fractional)")
	flagSampleRate = flag.Uint("samplerate", 0, "Force the sample rate used for the delay math instead of reading it from the file")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s -delay <ms> [-samplerate <hz>] <file>\n", os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	if *flagDelay <= 0 {
		fmt.Fprintln(os.Stderr, "Error: delay must be a positive millisecond value, may be fractional.")
		os.Exit(1)
	}

	if err := run(flag.Arg(0), *flagDelay, uint32(*flagSampleRate)); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(path string, delayMillis float64, sampleRate uint32) error {
	proc, err := delaytrim.NewProcessor(delayMillis)
	if err != nil {
		return err
	}

	proc.SampleRate = sampleRate

	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open %s for reading: %w", path, err)
	}
	defer in.Close()

	stat, err := in.Stat()
	if err != nil {
		return fmt.Errorf("cannot stat %s: %w", path, err)
	}

	tmpPath := path + ".tmp"

	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("cannot open %s for writing: %w", tmpPath, err)
	}

	if err := proc.Rewrite(in, out); err != nil {
		out.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("%s: %w", path, err)
	}

	if err := out.Close(); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("cannot finish %s: %w", tmpPath, err)
	}

	// best effort: carry the source mtime over to the trimmed file. The
	// mtime doubles as atime since os.FileInfo does not expose the
	// source's access time.
	os.Chtimes(tmpPath, stat.ModTime(), stat.ModTime())

	in.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("cannot replace %s: %w", path, err)
	}

	return nil
}
