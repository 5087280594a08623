package delaytrim

import "testing"

func TestSamplesToSkip(t *testing.T) {
	tests := []struct {
		name        string
		delayMillis float64
		sampleRate  uint32
		want        uint32
	}{
		{"1ms at 44100", 1, 44100, 44},
		{"10ms at 44100", 10, 44100, 441},
		{"1ms at 48000", 1, 48000, 48},
		{"fractional rounds half up", 0.5, 44100, 22},
		{"exact second", 1000, 44100, 44100},
		{"zero delay", 0, 44100, 0},
		{"zero rate", 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := samplesToSkip(tt.delayMillis, tt.sampleRate)
			if got != tt.want {
				t.Fatalf("samplesToSkip(%v, %d)=%d, want %d", tt.delayMillis, tt.sampleRate, got, tt.want)
			}
		})
	}
}

func TestBytesToSkip(t *testing.T) {
	tests := []struct {
		name          string
		delayMillis   float64
		sampleRate    uint32
		channels      uint16
		bitsPerSample uint16
		want          uint32
	}{
		{"16bit stereo", 10, 44100, 2, 16, 1764},
		{"16bit mono", 10, 44100, 1, 16, 882},
		{"8bit mono", 1, 44100, 1, 8, 44},
		{"24bit rounds up to 3 bytes", 10, 48000, 1, 24, 1440},
		{"20bit also 3 bytes", 10, 48000, 1, 20, 1440},
		{"zero delay", 0, 44100, 2, 16, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bytesToSkip(tt.delayMillis, tt.sampleRate, tt.channels, tt.bitsPerSample)
			if got != tt.want {
				t.Fatalf("bytesToSkip(%v, %d, %d, %d)=%d, want %d",
					tt.delayMillis, tt.sampleRate, tt.channels, tt.bitsPerSample, got, tt.want)
			}
		})
	}
}

func TestShiftLoopBound(t *testing.T) {
	tests := []struct {
		name         string
		bound        uint32
		delaySamples uint32
		want         uint32
	}{
		{"shifted", 1000, 500, 500},
		{"exactly at delay", 500, 500, 0},
		// a bound inside the removed region stays put
		{"below delay untouched", 300, 500, 300},
		{"zero bound", 0, 500, 0},
		{"zero delay", 1000, 0, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shiftLoopBound(tt.bound, tt.delaySamples)
			if got != tt.want {
				t.Fatalf("shiftLoopBound(%d, %d)=%d, want %d", tt.bound, tt.delaySamples, got, tt.want)
			}
		})
	}
}
