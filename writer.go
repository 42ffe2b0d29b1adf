package ucl

import "io"

// A Writer compresses whatever is written to it, using a MatchFinder for the
// LZ77 stage and an Encoder for the output format. Because the NRV formats
// are whole-buffer formats (the uncompressed length leads the stream, and
// decompression may run in place), the Writer accumulates everything written
// to it and compresses once, when Close is called.
type Writer struct {
	Dest        io.Writer
	MatchFinder MatchFinder
	Encoder     Encoder

	pending []byte
	matches []Match
	out     []byte
}

// Write saves p to be compressed when the Writer is closed.
// It never returns an error.
func (w *Writer) Write(p []byte) (n int, err error) {
	w.pending = append(w.pending, p...)
	return len(p), nil
}

// Close compresses the accumulated data and writes it to w.Dest.
func (w *Writer) Close() error {
	w.matches = w.MatchFinder.FindMatches(w.matches[:0], w.pending)
	w.out = w.Encoder.Encode(w.out[:0], w.pending, w.matches)
	_, err := w.Dest.Write(w.out)
	return err
}

// Reset prepares the Writer to compress a new stream, writing to dest.
func (w *Writer) Reset(dest io.Writer) {
	w.Dest = dest
	w.pending = w.pending[:0]
	w.MatchFinder.Reset()
	w.Encoder.Reset()
}
