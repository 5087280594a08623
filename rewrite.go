package delaytrim

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrUnknownFormat is returned when the input matches none of the
	// supported container types. Nothing useful has been written to the
	// output and the caller should discard it.
	ErrUnknownFormat = errors.New("unrecognized input format")
	// ErrInvalidContainer is returned when the container type was
	// recognized but its structure prevents a safe rewrite.
	ErrInvalidContainer = errors.New("invalid input container")
	// ErrUnsupportedSampleFormat is returned when WAV audio data is
	// stored in a compressed format that cannot be trimmed byte-wise.
	ErrUnsupportedSampleFormat = errors.New("unsupported sample format")

	errInvalidDelay = errors.New("delay must be a positive millisecond value")
	// errNotThisFormat tells the dispatcher to fall through to the next
	// container kind. It never escapes Rewrite.
	errNotThisFormat = errors.New("container signature mismatch")
)

// Processor rewrites audio files with their leading delay removed. The
// zero value is not usable; construct it with NewProcessor.
//
// A Processor may be reused across files. The sample rate used for the
// delay math is latched from the first file processed (or from the
// SampleRate override) and applied to every subsequent file, so a batch
// recorded at one rate is trimmed consistently even if individual files
// disagree about their rate.
type Processor struct {
	// DelayMillis is the leading duration to remove. Must be positive
	// and may be fractional.
	DelayMillis float64
	// SampleRate, when nonzero, forces the effective sample rate instead
	// of reading it from the first processed file.
	SampleRate uint32

	effectiveRate uint32
}

// NewProcessor returns a Processor trimming delayMillis of leading audio.
func NewProcessor(delayMillis float64) (*Processor, error) {
	if delayMillis <= 0 {
		return nil, errInvalidDelay
	}

	return &Processor{DelayMillis: delayMillis}, nil
}

// Rewrite copies r to w with the configured delay removed, detecting the
// container type of r. It tries WAV first, then FLAC, then AIFF; if none
// match, ErrUnknownFormat is returned. On any non-nil error the output
// must be discarded by the caller.
//
// The input must be positioned anywhere (it is rewound as needed); the
// output must be empty and seekable.
func (p *Processor) Rewrite(r io.ReadSeeker, w io.WriteSeeker) error {
	if p.DelayMillis <= 0 {
		return errInvalidDelay
	}

	err := p.rewriteWAV(r, w)
	if !errors.Is(err, errNotThisFormat) {
		return err
	}

	err = p.rewriteFLAC(r, w)
	if !errors.Is(err, errNotThisFormat) {
		return err
	}

	err = p.rewriteAIFF(r, w)
	if !errors.Is(err, errNotThisFormat) {
		return err
	}

	return ErrUnknownFormat
}

// effectiveSampleRate resolves the rate used for delay math. The first
// call latches either the forced rate or the declared one; later calls
// ignore the declared rate entirely.
func (p *Processor) effectiveSampleRate(declared uint32) uint32 {
	if p.effectiveRate == 0 {
		if p.SampleRate != 0 {
			p.effectiveRate = p.SampleRate
		} else {
			p.effectiveRate = declared
		}
	}

	return p.effectiveRate
}

func rewind(r io.Seeker) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start of input: %w", err)
	}

	return nil
}
