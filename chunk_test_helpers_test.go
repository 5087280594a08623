package delaytrim

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

type testChunk struct {
	id   string
	size uint32
	data []byte
}

var (
	errFileTooSmall         = errors.New("file too small")
	errInvalidRiffWaveHdr   = errors.New("invalid riff/wave header")
	errChunkExceedsFileSize = errors.New("chunk exceeds file size")
)

// parseWavChunks is an independent, minimal RIFF reader used to verify
// rewriter output without going through the code under test.
func parseWavChunks(data []byte) ([]testChunk, error) {
	if len(data) < 12 {
		return nil, errFileTooSmall
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, errInvalidRiffWaveHdr
	}

	chunks := make([]testChunk, 0)

	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		offset += 8

		end := offset + int(size)
		if end > len(data) {
			return nil, fmt.Errorf("%w: %q", errChunkExceedsFileSize, id)
		}

		payload := append([]byte(nil), data[offset:end]...)
		chunks = append(chunks, testChunk{id: id, size: size, data: payload})

		offset = end
		if size%2 == 1 {
			offset++
		}
	}

	return chunks, nil
}

func findChunk(chunks []testChunk, id string) *testChunk {
	for i := range chunks {
		if chunks[i].id == id {
			return &chunks[i]
		}
	}

	return nil
}

// buildWav assembles a RIFF/WAVE file from raw chunks. The RIFF size
// field is computed from the assembled content.
func buildWav(chunks []testChunk) []byte {
	body := new(bytes.Buffer)
	body.WriteString("WAVE")

	for _, ch := range chunks {
		body.WriteString(ch.id)
		binary.Write(body, binary.LittleEndian, uint32(len(ch.data)))
		body.Write(ch.data)

		if len(ch.data)%2 == 1 {
			body.WriteByte(0)
		}
	}

	out := new(bytes.Buffer)
	out.WriteString("RIFF")
	binary.Write(out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())

	return out.Bytes()
}

func fmtChunkData(formatTag, channels uint16, sampleRate uint32, bitsPerSample uint16) []byte {
	blockAlign := channels * ((bitsPerSample + 7) / 8)
	buf := new(bytes.Buffer)

	binary.Write(buf, binary.LittleEndian, formatChunk{
		FormatTag:      formatTag,
		NumChannels:    channels,
		SampleRate:     sampleRate,
		AvgBytesPerSec: sampleRate * uint32(blockAlign),
		BlockAlign:     blockAlign,
		BitsPerSample:  bitsPerSample,
	})

	return buf.Bytes()
}

func patternBytes(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}

	return data
}

// rewriteToFile runs p.Rewrite with a file-backed output and returns the
// written bytes.
func rewriteToFile(t *testing.T, p *Processor, input []byte) ([]byte, error) {
	t.Helper()

	outPath := filepath.Join(t.TempDir(), "out")

	out, err := os.Create(outPath)
	if err != nil {
		t.Fatalf("failed to create output file: %v", err)
	}
	defer out.Close()

	rewriteErr := p.Rewrite(bytes.NewReader(input), out)

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read output file: %v", err)
	}

	return data, rewriteErr
}
