package delaytrim

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// smpl chunk layout is documented here:
// https://sites.google.com/site/musicgapi/technical-documents/wav-file-format#smpl

const (
	smplHeaderSize = 36
	smplLoopSize   = 24
)

var errSmplTruncated = errors.New("truncated smpl chunk")

// SamplerInfo is the decoded payload of a RIFF smpl chunk.
type SamplerInfo struct {
	Manufacturer      [4]byte
	Product           [4]byte
	SamplePeriod      uint32
	MIDIUnityNote     uint32
	MIDIPitchFraction uint32
	SMPTEFormat       uint32
	SMPTEOffset       uint32
	NumSampleLoops    uint32
	SamplerData       uint32

	Loops []SampleLoop
	// Extra holds sampler-specific bytes trailing the loop records. They
	// are preserved verbatim so the re-encoded chunk keeps its size.
	Extra []byte
}

// SampleLoop is a single loop record of a smpl chunk. Start and End are
// sample offsets from the beginning of the audio data.
type SampleLoop struct {
	CuePointID [4]byte
	Type       uint32
	Start      uint32
	End        uint32
	Fraction   uint32
	PlayCount  uint32
}

type smplHeader struct {
	Manufacturer      [4]byte
	Product           [4]byte
	SamplePeriod      uint32
	MIDIUnityNote     uint32
	MIDIPitchFraction uint32
	SMPTEFormat       uint32
	SMPTEOffset       uint32
	NumSampleLoops    uint32
	SamplerData       uint32
}

// decodeSamplerChunk parses a raw smpl chunk payload.
func decodeSamplerChunk(data []byte) (*SamplerInfo, error) {
	if len(data) < smplHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", errSmplTruncated, len(data))
	}

	r := bytes.NewReader(data)

	var hdr smplHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read smpl header: %w", err)
	}

	info := &SamplerInfo{
		Manufacturer:      hdr.Manufacturer,
		Product:           hdr.Product,
		SamplePeriod:      hdr.SamplePeriod,
		MIDIUnityNote:     hdr.MIDIUnityNote,
		MIDIPitchFraction: hdr.MIDIPitchFraction,
		SMPTEFormat:       hdr.SMPTEFormat,
		SMPTEOffset:       hdr.SMPTEOffset,
		NumSampleLoops:    hdr.NumSampleLoops,
		SamplerData:       hdr.SamplerData,
	}

	loopBytes := int(hdr.NumSampleLoops) * smplLoopSize
	if loopBytes < 0 || smplHeaderSize+loopBytes > len(data) {
		return nil, fmt.Errorf("%w: %d loops in %d bytes", errSmplTruncated, hdr.NumSampleLoops, len(data))
	}

	if hdr.NumSampleLoops > 0 {
		info.Loops = make([]SampleLoop, hdr.NumSampleLoops)
		for i := range info.Loops {
			if err := binary.Read(r, binary.LittleEndian, &info.Loops[i]); err != nil {
				return nil, fmt.Errorf("failed to read smpl loop %d: %w", i, err)
			}
		}
	}

	if rest := data[smplHeaderSize+loopBytes:]; len(rest) > 0 {
		info.Extra = append([]byte(nil), rest...)
	}

	return info, nil
}

// encode serializes the sampler info back into its chunk payload form.
// The result has the same length as the payload it was decoded from.
func (s *SamplerInfo) encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, smplHeaderSize+len(s.Loops)*smplLoopSize+len(s.Extra)))

	hdr := smplHeader{
		Manufacturer:      s.Manufacturer,
		Product:           s.Product,
		SamplePeriod:      s.SamplePeriod,
		MIDIUnityNote:     s.MIDIUnityNote,
		MIDIPitchFraction: s.MIDIPitchFraction,
		SMPTEFormat:       s.SMPTEFormat,
		SMPTEOffset:       s.SMPTEOffset,
		NumSampleLoops:    s.NumSampleLoops,
		SamplerData:       s.SamplerData,
	}

	binary.Write(buf, binary.LittleEndian, hdr)
	for i := range s.Loops {
		binary.Write(buf, binary.LittleEndian, s.Loops[i])
	}

	buf.Write(s.Extra)

	return buf.Bytes()
}

// shiftLoops moves every loop bound back by delaySamples, applying the
// asymmetric rule of shiftLoopBound to start and end independently.
func (s *SamplerInfo) shiftLoops(delaySamples uint32) {
	for i := range s.Loops {
		s.Loops[i].Start = shiftLoopBound(s.Loops[i].Start, delaySamples)
		s.Loops[i].End = shiftLoopBound(s.Loops[i].End, delaySamples)
	}
}
