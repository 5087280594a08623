package delaytrim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// flacMaxSampleRate is the highest rate encodable in a FLAC stream.
const flacMaxSampleRate = 655350

// FLAC block size limits. Only the final block of a stream may be
// shorter than flacMinBlockSize.
const (
	flacMinBlockSize = 16
	flacMaxBlockSize = 65535
)

// maxFrameErrors bounds how many corrupt frames in a row are skipped
// before the decode loop gives up making progress.
const maxFrameErrors = 64

// riffApplicationID tags application blocks that carry foreign RIFF
// chunks (the convention used by flac --keep-foreign-metadata).
var riffApplicationID = binary.BigEndian.Uint32([]byte("riff"))

// rewriteFLAC decodes the FLAC stream of r frame by frame and re-encodes
// it to w with the delay removed. Metadata blocks are replayed into the
// output stream, with loop chunks embedded in riff application blocks
// shifted to the trimmed timeline. It returns errNotThisFormat if r is
// not a FLAC stream.
func (p *Processor) rewriteFLAC(r io.ReadSeeker, w io.WriteSeeker) error {
	if err := rewind(r); err != nil {
		return err
	}

	stream, err := flac.Parse(r)
	if err != nil {
		return errNotThisFormat
	}

	info := *stream.Info
	if info.NSamples == 0 {
		return fmt.Errorf("%w: stream info carries no total sample count", ErrInvalidContainer)
	}

	rate := p.effectiveSampleRate(info.SampleRate)

	// A SAMPLERATE tag marks an externally imposed rate. It overrides
	// both the stream header and any previously latched rate.
	for _, block := range stream.Blocks {
		comment, ok := block.Body.(*meta.VorbisComment)
		if !ok {
			continue
		}

		for _, tag := range comment.Tags {
			if !strings.EqualFold(tag[0], "SAMPLERATE") {
				continue
			}

			if v, err := strconv.ParseUint(tag[1], 10, 32); err == nil && v > 0 {
				rate = uint32(v)
				p.effectiveRate = rate
			}
		}
	}

	delaySamples := samplesToSkip(p.DelayMillis, rate)

	// Replay set for the encoder: every block the source carried, with
	// embedded loop chunks shifted in place. Padding blocks have no
	// parsed body and nothing worth replaying.
	blocks := make([]*meta.Block, 0, len(stream.Blocks))

	for _, block := range stream.Blocks {
		if block.Body == nil {
			continue
		}

		if app, ok := block.Body.(*meta.Application); ok && app.ID == riffApplicationID {
			shiftEmbeddedSamplerChunk(app.Data, delaySamples)
		}

		blocks = append(blocks, block)
	}

	if rate > flacMaxSampleRate {
		rate = flacMaxSampleRate
	}

	info.SampleRate = rate

	trimmed := uint64(delaySamples)
	if trimmed > info.NSamples {
		trimmed = info.NSamples
	}

	info.NSamples -= trimmed
	// The source hash no longer matches the trimmed audio.
	info.MD5sum = [16]byte{}

	var (
		enc       *flac.Encoder
		started   bool
		discard   = delaySamples
		written   uint64
		pending   [][]int32
		lastHdr   frame.Header
		frameErrs int
	)

	for {
		f, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			// A corrupt frame is skipped rather than aborting the whole
			// rewrite; bail once the parser stops making progress.
			frameErrs++
			if frameErrs > maxFrameErrors {
				break
			}

			continue
		}

		frameErrs = 0
		lastHdr = f.Header

		if !started {
			// The encoder writes the stream header and the metadata set
			// on creation, so it can only come up once all block
			// adjustments are final: right before the first audio frame.
			enc, err = flac.NewEncoder(w, &info, blocks...)
			if err != nil {
				return fmt.Errorf("failed to init FLAC encoder: %w", err)
			}

			started = true
		}

		blockSize := uint32(f.BlockSize)

		var out *frame.Frame

		switch {
		case discard >= blockSize:
			discard -= blockSize
			continue
		case discard > 0:
			pending = copyChannelTails(f, int(discard))
			discard = 0
		case pending != nil:
			pending = appendChannelSamples(pending, f)
		default:
			out = restampFrame(f, written)
		}

		if out == nil {
			// A run shorter than the minimum block size cannot form a
			// frame of its own; carry it into the next frame's samples.
			n := len(pending[0])
			if n < flacMinBlockSize {
				continue
			}

			var rest [][]int32
			if n > flacMaxBlockSize {
				rest = make([][]int32, len(pending))
				for i := range pending {
					rest[i] = pending[i][flacMaxBlockSize:]
					pending[i] = pending[i][:flacMaxBlockSize]
				}
			}

			out = synthesizeFrame(f.Header, pending, written)
			pending = rest
		}

		out.SampleRate = info.SampleRate

		if err := enc.WriteFrame(out); err != nil {
			return fmt.Errorf("failed to encode frame at sample %d: %w", written, err)
		}

		written += uint64(out.BlockSize)
	}

	if !started {
		return fmt.Errorf("%w: no audio frames decoded", ErrInvalidContainer)
	}

	// Audio held back near the end of the stream forms the final block,
	// the one place the format allows a short one.
	if pending != nil {
		out := synthesizeFrame(lastHdr, pending, written)
		out.SampleRate = info.SampleRate

		if err := enc.WriteFrame(out); err != nil {
			return fmt.Errorf("failed to encode frame at sample %d: %w", written, err)
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finish FLAC stream: %w", err)
	}

	return nil
}

// restampFrame renumbers f for its new position on the trimmed
// timeline. Output frames use variable-blocksize numbering since the
// trim offset rarely aligns with the original frame grid.
func restampFrame(f *frame.Frame, firstSample uint64) *frame.Frame {
	hdr := f.Header
	hdr.HasFixedBlockSize = false
	hdr.Num = firstSample

	return &frame.Frame{Header: hdr, Subframes: f.Subframes}
}

// copyChannelTails returns per-channel copies of f's samples from offset
// on. The copies stay valid across later ParseNext calls.
func copyChannelTails(f *frame.Frame, offset int) [][]int32 {
	tails := make([][]int32, len(f.Subframes))
	for i, sf := range f.Subframes {
		tails[i] = append([]int32(nil), sf.Samples[offset:]...)
	}

	return tails
}

// appendChannelSamples extends each channel of dst with the matching
// channel of f.
func appendChannelSamples(dst [][]int32, f *frame.Frame) [][]int32 {
	for i, sf := range f.Subframes {
		dst[i] = append(dst[i], sf.Samples...)
	}

	return dst
}

// synthesizeFrame builds a variable-blocksize frame carrying samples as
// verbatim-predicted subframes, positioned at firstSample on the output
// timeline. hdr supplies the stream parameters; synthesized samples no
// longer match the source's stereo decorrelation, so those channel
// assignments are replaced with the independent one.
func synthesizeFrame(hdr frame.Header, samples [][]int32, firstSample uint64) *frame.Frame {
	hdr.HasFixedBlockSize = false
	hdr.Num = firstSample
	hdr.BlockSize = uint16(len(samples[0]))

	switch hdr.Channels {
	case frame.ChannelsLeftSide, frame.ChannelsSideRight, frame.ChannelsMidSide:
		hdr.Channels = frame.ChannelsLR
	}

	subframes := make([]*frame.Subframe, len(samples))
	for i, ch := range samples {
		subframes[i] = &frame.Subframe{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   ch,
			NSamples:  len(ch),
		}
	}

	return &frame.Frame{Header: hdr, Subframes: subframes}
}

// shiftEmbeddedSamplerChunk rewrites a foreign RIFF smpl chunk stored in
// a FLAC application block: chunk id and size, then the regular smpl
// payload. The mutation keeps the block length unchanged. Blocks that do
// not carry a smpl chunk are left alone.
func shiftEmbeddedSamplerChunk(data []byte, delaySamples uint32) bool {
	if len(data) < 8+smplHeaderSize || string(data[:4]) != "smpl" {
		return false
	}

	size := binary.LittleEndian.Uint32(data[4:8])
	if size < smplHeaderSize {
		return false
	}

	payload := data[8:]
	if uint64(size) < uint64(len(payload)) {
		payload = payload[:size]
	}

	info, err := decodeSamplerChunk(payload)
	if err != nil {
		return false
	}

	info.shiftLoops(delaySamples)
	copy(payload, info.encode())

	return true
}
