package delaytrim

import (
	"fmt"
	"io"

	"github.com/go-audio/aiff"
)

// rewriteAIFF trims an AIFF file by decoding its PCM data, dropping the
// leading delay, and re-encoding with the source parameters. Unlike the
// WAV path this is a full decode/re-encode, so non-audio chunks are not
// carried over. It returns errNotThisFormat if r is not an AIFF file.
func (p *Processor) rewriteAIFF(r io.ReadSeeker, w io.WriteSeeker) error {
	if err := rewind(r); err != nil {
		return err
	}

	if !aiff.NewDecoder(r).IsValidFile() {
		return errNotThisFormat
	}

	if err := rewind(r); err != nil {
		return err
	}

	d := aiff.NewDecoder(r)

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("%w: failed to decode aiff data: %v", ErrInvalidContainer, err)
	}

	rate := p.effectiveSampleRate(uint32(d.SampleRate))
	delaySamples := samplesToSkip(p.DelayMillis, rate)

	channels := int(d.NumChans)
	if channels < 1 {
		channels = 1
	}

	skip := int(delaySamples) * channels
	if skip > len(buf.Data) {
		return fmt.Errorf("%w: delay of %d samples exceeds %d sample frames of audio data", ErrInvalidContainer, delaySamples, len(buf.Data)/channels)
	}

	buf.Data = buf.Data[skip:]
	buf.Format.SampleRate = int(rate)

	enc := aiff.NewEncoder(w, int(rate), int(d.BitDepth), channels)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to encode aiff data: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finish aiff file: %w", err)
	}

	return nil
}
