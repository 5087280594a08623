// Package delaytrim removes a fixed leading delay from the audio data of
// WAV, FLAC, and AIFF files while preserving the rest of the container.
//
// The typical use case is batch-recorded sample material captured with a
// known hardware round-trip latency: the delay is stripped losslessly,
// without touching the encoding, bit depth, or accompanying metadata.
// Sample-position-dependent metadata (smpl loop points, including loop
// chunks embedded in FLAC application blocks) is re-synchronized to the
// shortened timeline.
//
// A Processor holds the per-run trim parameters:
//
//	p, err := delaytrim.NewProcessor(10.5)
//	if err != nil {
//		...
//	}
//	err = p.Rewrite(in, out)
//
// Rewrite detects the container type on its own; inputs that are neither
// WAV, FLAC, nor AIFF yield ErrUnknownFormat. WAV files are rewritten
// chunk by chunk, FLAC files are decoded and re-encoded frame by frame,
// AIFF files are decoded and re-encoded in full.
package delaytrim
