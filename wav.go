package delaytrim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/riff"
)

const (
	wavFormatPCM       = 1
	wavFormatIEEEFloat = 3

	// fmtPayloadSize is the plain (non-extensible) fmt chunk payload. A
	// fmt chunk of any other size is copied through verbatim.
	fmtPayloadSize = 16
)

// cidSmpl is the chunk ID of the sampler (loop point) chunk.
var cidSmpl = [4]byte{'s', 'm', 'p', 'l'}

// formatChunk is the fixed 16-byte WAV fmt payload.
type formatChunk struct {
	FormatTag      uint16
	NumChannels    uint16
	SampleRate     uint32
	AvgBytesPerSec uint32
	BlockAlign     uint16
	BitsPerSample  uint16
}

// wavWriter tracks the number of bytes written so the RIFF size field
// can be patched once the chunk walk is done.
type wavWriter struct {
	w       io.WriteSeeker
	written int64
}

func (ww *wavWriter) addLE(src any) error {
	err := binary.Write(ww.w, binary.LittleEndian, src)
	if err != nil {
		return fmt.Errorf("failed to write little endian: %w", err)
	}

	ww.written += int64(binary.Size(src))

	return nil
}

func (ww *wavWriter) write(data []byte) error {
	n, err := ww.w.Write(data)
	ww.written += int64(n)

	if err != nil {
		return fmt.Errorf("failed to write chunk payload: %w", err)
	}

	return nil
}

func (ww *wavWriter) copyN(r io.Reader, n int64) error {
	written, err := io.CopyN(ww.w, r, n)
	ww.written += written

	if err != nil {
		return fmt.Errorf("failed to copy chunk payload: %w", err)
	}

	return nil
}

// rewriteWAV walks the RIFF chunk stream of r and writes it to w with
// the delay removed from the data chunk, the smpl loop points shifted,
// and every other chunk copied byte for byte. It returns
// errNotThisFormat if r does not start with a RIFF/WAVE header.
func (p *Processor) rewriteWAV(r io.ReadSeeker, w io.WriteSeeker) error {
	if err := rewind(r); err != nil {
		return err
	}

	parser := riff.New(r)

	id, size, err := parser.IDnSize()
	if err != nil || id != riff.RiffID {
		return errNotThisFormat
	}

	var format [4]byte
	if err := binary.Read(r, binary.BigEndian, &format); err != nil || format != riff.WavFormatID {
		return errNotThisFormat
	}

	out := &wavWriter{w: w}

	// Copy the 12-byte header as-is; the size field is patched at the end.
	if err := out.addLE(id); err != nil {
		return err
	}

	if err := out.addLE(size); err != nil {
		return err
	}

	if err := out.addLE(format); err != nil {
		return err
	}

	var (
		fmtSeen                  bool
		desc                     formatChunk
		delaySamples, delayBytes uint32
	)

	for {
		chunkID, chunkSize, err := parser.IDnSize()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}

			return fmt.Errorf("%w: bad chunk header: %v", ErrInvalidContainer, err)
		}

		payloadStart, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("%w: failed to locate chunk payload: %v", ErrInvalidContainer, err)
		}

		if err := out.addLE(chunkID); err != nil {
			return err
		}

		switch {
		case chunkID == riff.FmtID && chunkSize == fmtPayloadSize:
			if err := binary.Read(r, binary.LittleEndian, &desc); err != nil {
				return fmt.Errorf("%w: short fmt chunk: %v", ErrInvalidContainer, err)
			}

			fmtSeen = true

			// The serialized rate is the effective one: a forced rate, or
			// the rate latched from the first file of the run.
			desc.SampleRate = p.effectiveSampleRate(desc.SampleRate)
			delaySamples = samplesToSkip(p.DelayMillis, desc.SampleRate)
			delayBytes = bytesToSkip(p.DelayMillis, desc.SampleRate, desc.NumChannels, desc.BitsPerSample)

			if err := out.addLE(chunkSize); err != nil {
				return err
			}

			if err := out.addLE(desc); err != nil {
				return err
			}
		case chunkID == riff.DataFormatID:
			if !fmtSeen {
				return fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidContainer)
			}

			if desc.FormatTag != wavFormatPCM && desc.FormatTag != wavFormatIEEEFloat {
				return fmt.Errorf("%w: fmt tag %d", ErrUnsupportedSampleFormat, desc.FormatTag)
			}

			if delayBytes > chunkSize {
				return fmt.Errorf("%w: delay of %d bytes exceeds %d bytes of audio data", ErrInvalidContainer, delayBytes, chunkSize)
			}

			if _, err := r.Seek(int64(delayBytes), io.SeekCurrent); err != nil {
				return fmt.Errorf("%w: failed to skip delay: %v", ErrInvalidContainer, err)
			}

			newSize := chunkSize - delayBytes
			if err := out.addLE(newSize); err != nil {
				return err
			}

			if err := out.copyN(r, int64(newSize)); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidContainer, err)
			}

			// The pad byte follows the shrunk size, not the original one.
			if newSize%2 == 1 {
				if err := out.addLE(byte(0)); err != nil {
					return err
				}
			}
		case chunkID == cidSmpl:
			payload := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, payload); err != nil {
				return fmt.Errorf("%w: short smpl chunk: %v", ErrInvalidContainer, err)
			}

			info, err := decodeSamplerChunk(payload)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidContainer, err)
			}

			info.shiftLoops(delaySamples)

			if err := out.addLE(chunkSize); err != nil {
				return err
			}

			if err := out.write(info.encode()); err != nil {
				return err
			}

			if chunkSize%2 == 1 {
				if err := out.addLE(byte(0)); err != nil {
					return err
				}
			}
		default:
			if err := out.addLE(chunkSize); err != nil {
				return err
			}

			if err := out.copyN(r, int64(chunkSize)); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidContainer, err)
			}

			if chunkSize%2 == 1 {
				// Copy the input's pad byte verbatim. A final chunk may
				// lack it; pad with zero then.
				var pad [1]byte
				if _, err := io.ReadFull(r, pad[:]); err != nil {
					pad[0] = 0
				}

				if err := out.write(pad[:]); err != nil {
					return err
				}
			}
		}

		// Resync to the next chunk regardless of what the arm consumed.
		next := payloadStart + int64(chunkSize)
		if chunkSize%2 == 1 {
			next++
		}

		if _, err := r.Seek(next, io.SeekStart); err != nil {
			return fmt.Errorf("%w: failed to seek to next chunk: %v", ErrInvalidContainer, err)
		}
	}

	// Patch the RIFF size field with the true output length, minus the
	// 8-byte id+size prefix of the outer container.
	if _, err := w.Seek(4, io.SeekStart); err != nil {
		return fmt.Errorf("%w: failed to seek to RIFF size field: %v", ErrInvalidContainer, err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(out.written-8)); err != nil {
		return fmt.Errorf("failed to patch RIFF size field: %w", err)
	}

	if _, err := w.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end of output: %w", err)
	}

	return nil
}
