package delaytrim

// samplesToSkip converts a millisecond delay into a sample count at the
// given rate. Rounding is half-up (add 0.5, truncate) to stay bit-exact
// with files trimmed by earlier versions of this tool.
func samplesToSkip(delayMillis float64, sampleRate uint32) uint32 {
	if delayMillis <= 0 || sampleRate == 0 {
		return 0
	}

	return uint32(0.5 + delayMillis*float64(sampleRate)/1000.0)
}

// bytesToSkip converts a millisecond delay into a byte count for
// interleaved sample data. Bits per sample are rounded up to whole
// storage bytes.
func bytesToSkip(delayMillis float64, sampleRate uint32, channels, bitsPerSample uint16) uint32 {
	if delayMillis <= 0 || sampleRate == 0 {
		return 0
	}

	bytesPerSec := float64(sampleRate) * float64(channels) * float64((bitsPerSample+7)/8)

	return uint32(0.5 + delayMillis*bytesPerSec/1000.0)
}

// shiftLoopBound moves a loop bound (in samples) back by delaySamples.
// A bound smaller than the delay is left untouched, even though it then
// points into the removed region. Long-standing behavior; do not "fix"
// it, re-trimming tools depend on the exact values.
func shiftLoopBound(bound, delaySamples uint32) uint32 {
	if bound >= delaySamples {
		return bound - delaySamples
	}

	return bound
}
