package gpio

import "errors"

var errNoSamples = errors.New("fake reader has no samples")

// FakeReader plays back Samples, one per Read, then holds the last value.
// It backs the "fake" backend and the daemon tests.
type FakeReader struct {
	Samples   []int
	ReadError error // returned by every Read while set

	Reads  int
	Closed bool

	next int
}

func NewFakeReader(samples []int) *FakeReader {
	return &FakeReader{Samples: samples}
}

func (f *FakeReader) Read() (int, error) {
	f.Reads++
	switch {
	case f.ReadError != nil:
		return 0, f.ReadError
	case len(f.Samples) == 0:
		return 0, errNoSamples
	}
	v := f.Samples[min(f.next, len(f.Samples)-1)]
	f.next++
	return v, nil
}

func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds playback and clears the counters.
func (f *FakeReader) Reset() {
	f.next, f.Reads, f.Closed = 0, 0, false
}
