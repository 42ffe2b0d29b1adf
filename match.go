// Package ucl is a modular implementation of the UCL (NRV) family of
// LZ77 compressors.
//
// Compression is split into two stages with an intermediate
// representation between them:
//   - a MatchFinder performs the LZ77 stage, looking for repeated
//     sequences of bytes and describing them as Matches
//   - an Encoder serializes the matches into the final bit-stream format
//
// The ucl/nrv subpackage provides the NRV bit-stream encoder and
// decoder, along with convenience functions for whole-buffer
// compression and decompression (including in-place decompression).
// The match finders and parsers in this package are format-agnostic and
// can be combined freely with any Encoder.
package ucl

// A Match is the basic unit of LZ77 compression.
type Match struct {
	Unmatched int // the number of unmatched bytes since the previous match
	Length    int // the number of bytes in the matched string; it may be 0 at the end of the input
	Distance  int // how far back in the stream to copy from
}

// A MatchFinder performs the LZ77 stage of compression, looking for matches.
type MatchFinder interface {
	// FindMatches looks for matches in src, appends them to dst, and returns dst.
	FindMatches(dst []Match, src []byte) []Match

	// Reset clears any internal state, preparing the MatchFinder to be used with
	// a new stream.
	Reset()
}

// An Encoder encodes the data in its final format.
type Encoder interface {
	// Encode appends the encoded form of src to dst, using the match
	// information from matches, and returns dst.
	Encode(dst []byte, src []byte, matches []Match) []byte

	// Reset clears any internal state, preparing the Encoder to be used with
	// a new stream.
	Reset()
}

// AutoReset wraps a MatchFinder that can return references to data in previous
// blocks, and calls Reset before each block, so that the finder can be used on
// independent buffers.
type AutoReset struct {
	MatchFinder
}

func (a AutoReset) FindMatches(dst []Match, src []byte) []Match {
	a.Reset()
	return a.MatchFinder.FindMatches(dst, src)
}
