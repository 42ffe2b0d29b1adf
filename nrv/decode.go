package nrv

// maxInt is the largest length a slice can have on this platform.
const maxInt = int(^uint(0) >> 1)

// Decompress decompresses an NRV stream, allocating the destination
// from the stream's length header. It returns ErrTooLarge if the
// header declares more data than a slice can hold.
func Decompress(src []byte) ([]byte, error) {
	br := bitReader{src: src}
	n, err := br.readNumber()
	if err != nil {
		return nil, err
	}
	if n > uint64(maxInt) {
		return nil, ErrTooLarge
	}
	dst := make([]byte, n)
	if _, err := decompressBody(&br, dst, int(n), -1); err != nil {
		return nil, err
	}
	return dst, nil
}

// DecompressInto decompresses an NRV stream into dst, which the caller
// has sized from prior knowledge of the uncompressed length. It returns
// the number of bytes written at dst[0:]. If the stream's header
// declares more data than dst can hold, it returns ErrLengthMismatch
// before decoding anything.
func DecompressInto(src, dst []byte) (int, error) {
	br := bitReader{src: src}
	n, err := br.readNumber()
	if err != nil {
		return 0, err
	}
	if n > uint64(len(dst)) {
		return 0, ErrLengthMismatch
	}
	return decompressBody(&br, dst, int(n), -1)
}

// DecompressInPlace decompresses a stream that sits at the tail of buf,
// at buf[srcStart:srcEnd], writing the output over the same buffer
// starting at buf[0]. It returns the uncompressed length. The write
// cursor is allowed to run into the compressed region, but never past
// the bytes the decoder has not read yet; position the stream with at
// least RequiredOverlapMargin of slack and that cannot happen. If it
// does, DecompressInPlace fails with ErrOverlapViolation rather than
// decode corrupt data.
func DecompressInPlace(buf []byte, srcStart, srcEnd int) (int, error) {
	br := bitReader{src: buf[srcStart:srcEnd]}
	n, err := br.readNumber()
	if err != nil {
		return 0, err
	}
	if n > uint64(len(buf)) {
		return 0, ErrLengthMismatch
	}
	return decompressBody(&br, buf, int(n), srcStart)
}

// RequiredOverlapMargin returns how much room to leave between the
// uncompressed length and the end of the compressed region for
// DecompressInPlace: lay out the shared buffer as
//
//	len(buf) = uncompressedLen + margin, srcEnd = len(buf)
//
// and the decoder's write cursor can never catch up with its read
// cursor. The bound holds for any stream this package's compressor
// produces, because the encoder spends at most 9 bits of stream per
// byte of output (see Encoder), so the unread remainder of a stream
// can exceed the unwritten remainder of the output by at most an
// eighth of the output plus a small constant for the header, the
// end-of-stream marker, and control-byte rounding.
func RequiredOverlapMargin(compressedLen, uncompressedLen int) int {
	margin := uncompressedLen/8 + 256
	if compressedLen > uncompressedLen {
		margin += compressedLen - uncompressedLen
	}
	return margin
}

// decompressBody decodes the token stream following the header. dst is
// the full destination buffer and expected the length the header
// declared. srcOrigin is the offset of the compressed stream within dst
// when decoding in place, or -1 when src and dst are separate buffers.
func decompressBody(br *bitReader, dst []byte, expected, srcOrigin int) (int, error) {
	w := 0
	lastOff := 0

	for {
		// Literal run: one set flag bit per literal byte.
		for {
			bit, err := br.readBit()
			if err != nil {
				return 0, err
			}
			if bit == 0 {
				break
			}
			b, err := br.readByte()
			if err != nil {
				return 0, err
			}
			if w >= expected {
				return 0, ErrCorruptStream
			}
			if srcOrigin >= 0 && w >= srcOrigin+br.pos {
				return 0, ErrOverlapViolation
			}
			dst[w] = b
			w++
		}

		p, err := br.readPrefix()
		if err != nil {
			return 0, err
		}

		var dist int
		if p == 2 {
			// Reuse of the previous match's distance.
			if lastOff == 0 {
				return 0, ErrCorruptStream
			}
			dist = lastOff
		} else {
			low, err := br.readByte()
			if err != nil {
				return 0, err
			}
			// The high part must be bounded before the shift: a distance
			// cannot exceed the declared output length, and on 32-bit
			// platforms an unchecked shift would overflow int.
			if p-3 > uint64(expected)>>8 {
				return 0, ErrCorruptStream
			}
			dist = int(p-3)<<8 | int(low)
			if dist == 0 {
				// The reserved distance: end-of-stream marker.
				break
			}
			lastOff = dist
		}

		m, err := readMatchLen(br)
		if err != nil {
			return 0, err
		}
		length := m + 1
		if dist > farDistance {
			length++
		}

		if dist > w {
			return 0, ErrCorruptStream
		}
		if length > expected-w {
			return 0, ErrCorruptStream
		}

		from := w - dist
		if srcOrigin < 0 && dist >= length {
			// The regions cannot overlap, so a block copy is safe.
			copy(dst[w:w+length], dst[from:from+length])
			w += length
			continue
		}
		// When distance < length the match replays bytes it is itself
		// producing, so the copy must run byte by byte in increasing
		// order. In-place decoding also checks every write against the
		// read cursor.
		for i := 0; i < length; i++ {
			if srcOrigin >= 0 && w >= srcOrigin+br.pos {
				return 0, ErrOverlapViolation
			}
			dst[w] = dst[from+i]
			w++
		}
	}

	if w != expected {
		return 0, ErrCorruptStream
	}
	if br.pos != len(br.src) {
		// Redundant self-termination: the marker must coincide with the
		// end of the input, anything else is corruption.
		return 0, ErrCorruptStream
	}
	return w, nil
}

func readMatchLen(br *bitReader) (int, error) {
	hi, err := br.readBit()
	if err != nil {
		return 0, err
	}
	lo, err := br.readBit()
	if err != nil {
		return 0, err
	}
	m := hi<<1 | lo
	if m == 0 {
		v, err := br.readPrefix()
		if err != nil {
			return 0, err
		}
		// No match can be longer than the output; reject before the int
		// conversion, which wraps on 32-bit platforms.
		if v > uint64(maxInt)-4 {
			return 0, ErrCorruptStream
		}
		m = int(v) + 2
	}
	return m, nil
}
