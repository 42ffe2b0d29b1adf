package nrv

import (
	"math/bits"

	"github.com/afflux/ucl"
)

const (
	// minMatch is the shortest back-reference the format can encode.
	minMatch = 2

	// farDistance is the distance above which the length code loses one
	// step, so a match that far back must cover at least three bytes.
	farDistance = 0xd00

	// literalCost is the encoded size of one literal in bits: the flag
	// bit plus the byte itself. The encoder never spends more than this
	// per output byte, which is what makes the in-place overlap margin
	// computable from the lengths alone.
	literalCost = 9

	// maxInputSize is the largest input a single stream can represent:
	// lengths are carried as 32-bit values.
	maxInputSize = 1<<32 - 1
)

// DefaultLevel is the compression level used by Compress.
const DefaultLevel = 6

// CompressBound returns the size of the buffer that is guaranteed to
// hold the compressed form of n bytes of input, however incompressible:
// n + n/8 + 256.
func CompressBound(n int) int {
	return n + n/8 + 256
}

// Compress compresses src at DefaultLevel. The result always
// decompresses to src, even if it is larger than src. It panics with
// ErrTooLarge if src is longer than the format's 32-bit length field
// allows (4 GiB - 1).
func Compress(src []byte) []byte {
	return CompressLevel(src, DefaultLevel)
}

// CompressLevel compresses src at the given level. Levels 1 (fastest)
// through 9 (best ratio) are available; levels outside this range are
// replaced with the closest level available.
func CompressLevel(src []byte, level int) []byte {
	f := NewMatchFinder(level)
	matches := f.FindMatches(nil, src)
	var e Encoder
	return e.Encode(make([]byte, 0, CompressBound(len(src))), src, matches)
}

// NewMatchFinder returns the ucl.MatchFinder used for the given
// compression level.
func NewMatchFinder(level int) ucl.MatchFinder {
	if level < 1 {
		level = 1
	}
	if level > 9 {
		level = 9
	}

	switch level {
	case 1:
		return &ucl.LazyMatchFinder{
			MaxDistance: maxSearchDistance,
			MaxLength:   fastMaxLength,
		}
	case 2, 3:
		return &ucl.HashChain{
			SearchLen:   2 << level,
			MaxDistance: maxSearchDistance,
			Parser:      &ucl.GreedyParser{},
		}
	default:
		return &ucl.HashChain{
			SearchLen:   8 << level,
			MaxDistance: maxSearchDistance,
			Parser:      &ucl.OverlapParser{Score: matchScore},
		}
	}
}

const (
	maxSearchDistance = 65535
	fastMaxLength     = 1 << 20
)

// matchScore weighs a candidate match by the bits it saves over sending
// the same bytes as literals.
func matchScore(m ucl.AbsoluteMatch) int {
	n := m.End - m.Start
	cost, ok := matchCost(n, m.Start-m.Match, 0)
	if !ok {
		return 0
	}
	return n*literalCost - cost
}

// An Encoder serializes LZ77 matches in the NRV bit-stream format. It
// implements the ucl.Encoder interface; the zero value is ready to use.
//
// The Encoder is also the final arbiter of which matches are used: a
// match whose exact encoded cost would exceed the cost of the literals
// it replaces is folded back into literals, as is anything a finder
// produces that the format cannot express (distance 0, two-byte matches
// beyond farDistance). Decompression is fully determined by the token
// sequence chosen here.
type Encoder struct{}

func (e *Encoder) Reset() {}

// Encode appends the NRV-compressed form of src to dst and returns dst.
// matches must cover src the way the finders in the parent package
// produce them: in order, with no gaps and no overlaps. Encode panics
// with ErrTooLarge if src is longer than the 32-bit length field allows.
func (e *Encoder) Encode(dst []byte, src []byte, matches []ucl.Match) []byte {
	if uint64(len(src)) > maxInputSize {
		panic(ErrTooLarge)
	}
	w := bitWriter{buf: dst}
	w.writeNumber(uint64(len(src)))

	pos := 0
	lastOff := 0
	for _, m := range matches {
		lit := m.Unmatched
		length, dist := m.Length, m.Distance

		if length > 0 {
			cost, ok := matchCost(length, dist, lastOff)
			if !ok || dist > pos+lit || cost > length*literalCost {
				// Not encodable, or not worth its bits: emit the bytes
				// the match covers as literals instead.
				lit += length
				length = 0
			}
		}

		for _, b := range src[pos : pos+lit] {
			w.writeBit(1)
			w.writeByte(b)
		}
		pos += lit

		if length > 0 {
			w.writeBit(0)
			if dist == lastOff {
				w.writePrefix(2)
			} else {
				w.writePrefix(uint64(dist)>>8 + 3)
				w.writeByte(byte(dist))
				lastOff = dist
			}
			writeMatchLen(&w, length, dist)
			pos += length
		}
	}

	// End-of-stream marker: a match with the reserved distance 0.
	w.writeBit(0)
	w.writePrefix(3)
	w.writeByte(0)

	return w.buf
}

func writeMatchLen(w *bitWriter, length, dist int) {
	m := length - 1
	if dist > farDistance {
		m--
	}
	if m <= 3 {
		w.writeBit(m >> 1)
		w.writeBit(m & 1)
	} else {
		w.writeBit(0)
		w.writeBit(0)
		w.writePrefix(uint64(m - 2))
	}
}

// matchCost returns the exact encoded size of a match in bits, and
// whether the format can express it at all.
func matchCost(length, dist, lastOff int) (cost int, ok bool) {
	if length < minMatch || dist < 1 {
		return 0, false
	}
	m := length - 1
	if dist > farDistance {
		m--
	}
	if m < 1 {
		return 0, false
	}

	cost = 1 // flag bit
	if dist == lastOff {
		cost += 2
	} else {
		cost += prefixCost(uint32(dist>>8)+3) + 8
	}
	if m <= 3 {
		cost += 2
	} else {
		cost += 2 + prefixCost(uint32(m-2))
	}
	return cost, true
}

func prefixCost(v uint32) int {
	return 2 * (bits.Len32(v) - 1)
}
