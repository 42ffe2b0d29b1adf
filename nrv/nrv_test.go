package nrv

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/afflux/ucl"
)

func testInputSet() []struct {
	name string
	data []byte
} {
	rng := rand.New(rand.NewSource(7))
	random := make([]byte, 1<<16)
	rng.Read(random)

	distinct := make([]byte, 256)
	for i := range distinct {
		distinct[i] = byte(i)
	}

	return []struct {
		name string
		data []byte
	}{
		{name: "nil", data: nil},
		{name: "empty", data: []byte{}},
		{name: "single-byte", data: []byte{0xab}},
		{name: "short-text", data: []byte("hello world, nrv test")},
		{name: "repeated-pattern", data: bytes.Repeat([]byte("abc123"), 2000)},
		{name: "long-run", data: bytes.Repeat([]byte{0xff}, 12000)},
		{name: "byte-cycle", data: bytes.Repeat([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 1200)},
		{name: "all-distinct", data: distinct},
		{name: "random", data: random},
		{name: "run-then-random", data: append(bytes.Repeat([]byte{0}, 5000), random[:200]...)},
	}
}

func TestRoundTripAcrossLevels(t *testing.T) {
	levels := []int{-3, 0, 1, 2, 5, 6, 9, 12}

	for _, in := range testInputSet() {
		for _, level := range levels {
			t.Run(fmt.Sprintf("%s/level-%d", in.name, level), func(t *testing.T) {
				compressed := CompressLevel(in.data, level)
				if len(compressed) > CompressBound(len(in.data)) {
					t.Fatalf("compressed to %d bytes, above CompressBound %d",
						len(compressed), CompressBound(len(in.data)))
				}

				out, err := Decompress(compressed)
				if err != nil {
					t.Fatalf("Decompress: %v", err)
				}
				if !bytes.Equal(out, in.data) {
					t.Fatalf("round-trip mismatch: got %d bytes, want %d", len(out), len(in.data))
				}

				dst := make([]byte, len(in.data))
				n, err := DecompressInto(compressed, dst)
				if err != nil {
					t.Fatalf("DecompressInto: %v", err)
				}
				if n != len(in.data) || !bytes.Equal(dst[:n], in.data) {
					t.Fatalf("DecompressInto mismatch: got %d bytes, want %d", n, len(in.data))
				}
			})
		}
	}
}

func TestCompressEmpty(t *testing.T) {
	compressed := Compress(nil)

	br := bitReader{src: compressed}
	n, err := br.readNumber()
	if err != nil {
		t.Fatalf("reading header: %v", err)
	}
	if n != 0 {
		t.Fatalf("header length = %d, want 0", n)
	}

	out, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("decoded %d bytes, want 0", len(out))
	}
}

func TestCompressShortRun(t *testing.T) {
	// Eight repeated bytes must compress below eight bytes:
	// header, one literal, one match, terminator.
	data := []byte("aaaaaaaa")
	compressed := Compress(data)
	if len(compressed) >= len(data) {
		t.Fatalf("compressed %q to %d bytes, want fewer than %d", data, len(compressed), len(data))
	}

	out, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("round-trip mismatch: got %q", out)
	}
}

func TestAllDistinctBytesStayLiteral(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}

	compressed := Compress(data)
	tokens := scanTokens(t, compressed)
	for _, tok := range tokens {
		if !tok.lit {
			t.Fatalf("input with no repeats produced a match (dist=%d len=%d)", tok.dist, tok.length)
		}
	}

	out, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("round-trip mismatch")
	}
}

// token is one decoded stream element, used by white-box tests.
type token struct {
	lit    bool
	b      byte
	dist   int
	length int
}

// scanTokens walks a compressed stream the way the decoder does,
// returning its tokens without producing output.
func scanTokens(tb testing.TB, src []byte) []token {
	tb.Helper()

	br := bitReader{src: src}
	expected, err := br.readNumber()
	if err != nil {
		tb.Fatalf("scan: header: %v", err)
	}

	var tokens []token
	produced := 0
	lastOff := 0
	for {
		for {
			bit, err := br.readBit()
			if err != nil {
				tb.Fatalf("scan: flag: %v", err)
			}
			if bit == 0 {
				break
			}
			b, err := br.readByte()
			if err != nil {
				tb.Fatalf("scan: literal: %v", err)
			}
			tokens = append(tokens, token{lit: true, b: b})
			produced++
		}

		p, err := br.readPrefix()
		if err != nil {
			tb.Fatalf("scan: distance prefix: %v", err)
		}
		var dist int
		if p == 2 {
			if lastOff == 0 {
				tb.Fatal("scan: distance reuse with no previous match")
			}
			dist = lastOff
		} else {
			low, err := br.readByte()
			if err != nil {
				tb.Fatalf("scan: distance low byte: %v", err)
			}
			dist = int(p-3)<<8 | int(low)
			if dist == 0 {
				break
			}
			lastOff = dist
		}

		m, err := readMatchLen(&br)
		if err != nil {
			tb.Fatalf("scan: length: %v", err)
		}
		length := m + 1
		if dist > farDistance {
			length++
		}
		tokens = append(tokens, token{dist: dist, length: length})
		produced += length
	}

	if produced != int(expected) {
		tb.Fatalf("scan: tokens produce %d bytes, header says %d", produced, expected)
	}
	if br.pos != len(src) {
		tb.Fatalf("scan: %d trailing bytes after terminator", len(src)-br.pos)
	}
	return tokens
}

func TestTokenInvariants(t *testing.T) {
	for _, in := range testInputSet() {
		for _, level := range []int{1, 3, 6, 9} {
			t.Run(fmt.Sprintf("%s/level-%d", in.name, level), func(t *testing.T) {
				compressed := CompressLevel(in.data, level)
				produced := 0
				for _, tok := range scanTokens(t, compressed) {
					if tok.lit {
						produced++
						continue
					}
					if tok.length < minMatch {
						t.Fatalf("match of length %d below minimum %d", tok.length, minMatch)
					}
					if tok.dist < 1 {
						t.Fatalf("match with distance %d", tok.dist)
					}
					if tok.dist > produced {
						t.Fatalf("match reaches %d bytes back with only %d produced", tok.dist, produced)
					}
					if tok.dist > farDistance && tok.length < minMatch+1 {
						t.Fatalf("far match (dist=%d) of length %d", tok.dist, tok.length)
					}
					produced += tok.length
				}
			})
		}
	}
}

func TestTruncationDetected(t *testing.T) {
	for _, in := range testInputSet() {
		t.Run(in.name, func(t *testing.T) {
			compressed := Compress(in.data)

			// Every suffix cut must be detected; on large streams,
			// checking every prefix is slow, so sample.
			step := 1
			if len(compressed) > 512 {
				step = len(compressed) / 256
			}
			for cut := 1; cut < len(compressed); cut += step {
				_, err := Decompress(compressed[:len(compressed)-cut])
				if err == nil {
					t.Fatalf("truncating %d bytes decoded successfully", cut)
				}
				if !errors.Is(err, ErrTruncatedStream) && !errors.Is(err, ErrCorruptStream) {
					t.Fatalf("truncating %d bytes: unexpected error %v", cut, err)
				}
			}
		})
	}
}

func TestInPlaceEquivalence(t *testing.T) {
	for _, in := range testInputSet() {
		for _, level := range []int{1, 6, 9} {
			t.Run(fmt.Sprintf("%s/level-%d", in.name, level), func(t *testing.T) {
				compressed := CompressLevel(in.data, level)

				margin := RequiredOverlapMargin(len(compressed), len(in.data))
				buf := make([]byte, len(in.data)+margin)
				srcStart := len(buf) - len(compressed)
				copy(buf[srcStart:], compressed)

				n, err := DecompressInPlace(buf, srcStart, len(buf))
				if err != nil {
					t.Fatalf("DecompressInPlace: %v", err)
				}
				if n != len(in.data) {
					t.Fatalf("in-place decoded %d bytes, want %d", n, len(in.data))
				}
				if !bytes.Equal(buf[:n], in.data) {
					t.Fatal("in-place output differs from original data")
				}
			})
		}
	}
}

func TestInPlaceOverlapViolation(t *testing.T) {
	// A long match followed by a literal tail: with no margin at all,
	// the match copy overtakes the still-unread literal bytes.
	rng := rand.New(rand.NewSource(3))
	tail := make([]byte, 200)
	rng.Read(tail)
	data := append(bytes.Repeat([]byte{0}, 5000), tail...)

	compressed := Compress(data)
	if len(compressed) >= len(data) {
		t.Skip("input did not compress; layout would not overlap")
	}

	buf := make([]byte, len(data))
	srcStart := len(buf) - len(compressed)
	copy(buf[srcStart:], compressed)

	_, err := DecompressInPlace(buf, srcStart, len(buf))
	if !errors.Is(err, ErrOverlapViolation) {
		t.Fatalf("zero-margin layout: got %v, want ErrOverlapViolation", err)
	}
}

func TestLastOffsetReuse(t *testing.T) {
	// Hand-built stream exercising the two-bit distance-reuse code:
	// "x", match(1,2), "y", reuse(1,3) -> "xxxyyyy".
	var w bitWriter
	w.writeNumber(7)
	w.writeBit(1)
	w.writeByte('x')
	w.writeBit(0) // match, dist 1, len 2
	w.writePrefix(3)
	w.writeByte(1)
	w.writeBit(0)
	w.writeBit(1) // m = 1
	w.writeBit(1)
	w.writeByte('y')
	w.writeBit(0) // match, reuse dist 1, len 3
	w.writePrefix(2)
	w.writeBit(1)
	w.writeBit(0) // m = 2
	w.writeBit(0) // terminator
	w.writePrefix(3)
	w.writeByte(0)

	out, err := Decompress(w.buf)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, []byte("xxxyyyy")) {
		t.Fatalf("got %q, want %q", out, "xxxyyyy")
	}
}

func TestCorruptStreams(t *testing.T) {
	t.Run("reuse-before-any-match", func(t *testing.T) {
		var w bitWriter
		w.writeNumber(2)
		w.writeBit(1)
		w.writeByte('x')
		w.writeBit(0)
		w.writePrefix(2) // reuse with no previous distance
		_, err := Decompress(w.buf)
		if !errors.Is(err, ErrCorruptStream) {
			t.Fatalf("got %v, want ErrCorruptStream", err)
		}
	})

	t.Run("distance-beyond-window", func(t *testing.T) {
		var w bitWriter
		w.writeNumber(4)
		w.writeBit(1)
		w.writeByte('x')
		w.writeBit(0)
		w.writePrefix(3)
		w.writeByte(5) // dist 5 with only 1 byte produced
		w.writeBit(0)
		w.writeBit(1)
		_, err := Decompress(w.buf)
		if !errors.Is(err, ErrCorruptStream) {
			t.Fatalf("got %v, want ErrCorruptStream", err)
		}
	})

	t.Run("header-disagrees-with-tokens", func(t *testing.T) {
		var w bitWriter
		w.writeNumber(10)
		w.writeBit(1)
		w.writeByte('x')
		w.writeBit(0) // terminator after a single literal
		w.writePrefix(3)
		w.writeByte(0)
		_, err := Decompress(w.buf)
		if !errors.Is(err, ErrCorruptStream) {
			t.Fatalf("got %v, want ErrCorruptStream", err)
		}
	})

	t.Run("oversized-distance-prefix", func(t *testing.T) {
		// The distance's high part must be rejected before the shift
		// that reassembles it; on 32-bit platforms an unchecked shift
		// wraps into a small negative distance.
		var w bitWriter
		w.writeNumber(16)
		w.writeBit(1)
		w.writeByte('x')
		w.writeBit(0)
		w.writePrefix(1 << 24)
		w.writeByte(0xff)
		w.writeBit(0)
		w.writeBit(1)
		_, err := Decompress(w.buf)
		if !errors.Is(err, ErrCorruptStream) {
			t.Fatalf("got %v, want ErrCorruptStream", err)
		}
	})

	t.Run("oversized-length-prefix", func(t *testing.T) {
		// Same wrap hazard on the length code's escape path.
		var w bitWriter
		w.writeNumber(16)
		w.writeBit(1)
		w.writeByte('x')
		w.writeBit(0)
		w.writePrefix(3)
		w.writeByte(1) // dist 1
		w.writeBit(0)
		w.writeBit(0) // length escape
		w.writePrefix(1 << 31)
		_, err := Decompress(w.buf)
		if !errors.Is(err, ErrCorruptStream) {
			t.Fatalf("got %v, want ErrCorruptStream", err)
		}
	})

	t.Run("trailing-garbage", func(t *testing.T) {
		compressed := Compress([]byte("trailing garbage test"))
		_, err := Decompress(append(compressed, 0x00))
		if !errors.Is(err, ErrCorruptStream) {
			t.Fatalf("got %v, want ErrCorruptStream", err)
		}
	})

	t.Run("tokens-overrun-header", func(t *testing.T) {
		var w bitWriter
		w.writeNumber(1)
		w.writeBit(1)
		w.writeByte('x')
		w.writeBit(1)
		w.writeByte('y') // second literal, but header says 1 byte
		_, err := Decompress(w.buf)
		if !errors.Is(err, ErrCorruptStream) {
			t.Fatalf("got %v, want ErrCorruptStream", err)
		}
	})
}

func TestHeaderNearLengthFieldLimit(t *testing.T) {
	// Headers anywhere in the 32-bit length range must parse; when the
	// destination is smaller, that is a length mismatch, not stream
	// corruption.
	for _, n := range []uint64{1<<30 - 1, 1 << 30, 1<<32 - 1} {
		var w bitWriter
		w.writeNumber(n)
		dst := make([]byte, 16)
		if _, err := DecompressInto(w.buf, dst); !errors.Is(err, ErrLengthMismatch) {
			t.Fatalf("header %d: got %v, want ErrLengthMismatch", n, err)
		}
	}
}

func TestRoundTripLongInput(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates multiple GiB")
	}
	// A gigabyte-scale run: the length header sits above 1<<30.
	data := make([]byte, 1<<30-1)
	compressed := Compress(data)
	out, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("round-trip mismatch")
	}
}

func TestDecompressIntoTooSmall(t *testing.T) {
	data := bytes.Repeat([]byte("undersized"), 10)
	compressed := Compress(data)

	dst := make([]byte, len(data)/2)
	_, err := DecompressInto(compressed, dst)
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("got %v, want ErrLengthMismatch", err)
	}
}

func TestDecompressIntoLargerBuffer(t *testing.T) {
	data := []byte("fits with room to spare")
	compressed := Compress(data)

	dst := make([]byte, len(data)+128)
	n, err := DecompressInto(compressed, dst)
	if err != nil {
		t.Fatalf("DecompressInto: %v", err)
	}
	if n != len(data) || !bytes.Equal(dst[:n], data) {
		t.Fatalf("got %d bytes, want %d", n, len(data))
	}
}

func TestWriterRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("writer round trip "), 512)

	var buf bytes.Buffer
	w := &ucl.Writer{
		Dest:        &buf,
		MatchFinder: NewMatchFinder(5),
		Encoder:     &Encoder{},
	}
	if _, err := w.Write(data[:1000]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Write(data[1000:]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out, err := Decompress(buf.Bytes())
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("round-trip through Writer mismatch")
	}
}

func FuzzRoundTrip(f *testing.F) {
	f.Add([]byte(""), uint8(0))
	f.Add([]byte("hello world"), uint8(1))
	f.Add(bytes.Repeat([]byte{0x00}, 1024), uint8(9))
	f.Add(bytes.Repeat([]byte("abc"), 500), uint8(6))

	f.Fuzz(func(t *testing.T, data []byte, level uint8) {
		if len(data) > 1<<16 {
			data = data[:1<<16]
		}

		compressed := CompressLevel(data, int(level%16))
		out, err := Decompress(compressed)
		if err != nil {
			t.Fatalf("Decompress: %v", err)
		}
		if !bytes.Equal(out, data) {
			t.Fatalf("round-trip mismatch: got %d bytes, want %d", len(out), len(data))
		}
	})
}

func FuzzDecompress(f *testing.F) {
	f.Add(Compress([]byte("seed stream")))
	f.Add([]byte{0x40})
	f.Add([]byte{0xff, 0xff, 0xff})

	f.Fuzz(func(t *testing.T, data []byte) {
		br := bitReader{src: data}
		if n, err := br.readNumber(); err == nil && n > 1<<20 {
			t.Skip("header claims an unreasonably large output")
		}
		// Must never panic or produce a wrong-length result.
		out, err := Decompress(data)
		if err == nil {
			br := bitReader{src: data}
			n, _ := br.readNumber()
			if len(out) != int(n) {
				t.Fatalf("decoded %d bytes, header says %d", len(out), n)
			}
		}
	})
}
