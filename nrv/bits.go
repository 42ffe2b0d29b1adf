package nrv

import "math/bits"

// The bit layer of the NRV format. Bits are packed MSB-first into
// control bytes that are interleaved with plain data bytes: the writer
// reserves a byte in the output when the first bit of a group is
// produced and patches the group's bits into it, and the reader
// consumes a control byte as soon as it needs a bit and has none left.
// As long as both sides issue the same sequence of bit and byte
// operations, the two byte streams stay in lockstep.

// maxPrefixValue bounds prefix-coded values: large enough to code any
// 32-bit length (the format's size field), small enough that a corrupt
// stream cannot run the accumulator away.
const maxPrefixValue = 1<<32 + 1

type bitWriter struct {
	buf     []byte
	ctrlPos int  // index of the control byte being filled
	mask    byte // position of the next bit within it; 0 means the group is full
}

func (w *bitWriter) writeBit(b int) {
	if w.mask == 0 {
		w.ctrlPos = len(w.buf)
		w.buf = append(w.buf, 0)
		w.mask = 0x80
	}
	if b != 0 {
		w.buf[w.ctrlPos] |= w.mask
	}
	w.mask >>= 1
}

func (w *bitWriter) writeByte(b byte) {
	w.buf = append(w.buf, b)
}

// writePrefix emits v in the NRV doubling code: the bits of v below its
// most significant bit, each followed by a continuation bit that is set
// only after the last one. v must be at least 2; the code is
// self-delimiting and smaller values cost fewer bits.
func (w *bitWriter) writePrefix(v uint64) {
	for i := bits.Len64(v) - 2; i >= 0; i-- {
		w.writeBit(int(v >> uint(i) & 1))
		if i == 0 {
			w.writeBit(1)
		} else {
			w.writeBit(0)
		}
	}
}

// writeNumber codes any non-negative integer by shifting it into the
// prefix code's domain.
func (w *bitWriter) writeNumber(n uint64) {
	w.writePrefix(n + 2)
}

type bitReader struct {
	src  []byte
	pos  int
	cur  byte
	mask byte
}

func (r *bitReader) readBit() (int, error) {
	if r.mask == 0 {
		if r.pos >= len(r.src) {
			return 0, ErrTruncatedStream
		}
		r.cur = r.src[r.pos]
		r.pos++
		r.mask = 0x80
	}
	b := 0
	if r.cur&r.mask != 0 {
		b = 1
	}
	r.mask >>= 1
	return b, nil
}

func (r *bitReader) readByte() (byte, error) {
	if r.pos >= len(r.src) {
		return 0, ErrTruncatedStream
	}
	b := r.src[r.pos]
	r.pos++
	return b, nil
}

func (r *bitReader) readPrefix() (uint64, error) {
	v := uint64(1)
	for {
		b, err := r.readBit()
		if err != nil {
			return 0, err
		}
		v = v<<1 | uint64(b)
		if v > maxPrefixValue {
			return 0, ErrCorruptStream
		}
		stop, err := r.readBit()
		if err != nil {
			return 0, err
		}
		if stop != 0 {
			return v, nil
		}
	}
}

func (r *bitReader) readNumber() (uint64, error) {
	v, err := r.readPrefix()
	if err != nil {
		return 0, err
	}
	return v - 2, nil
}
