/*
Package nrv implements the NRV bit-stream compression format, the codec
that the UCL library is built around. It is designed so that the
decompressor stays tiny and can run without any work memory, which makes
the format a common choice for self-extracting executables and boot
loaders. To support those uses the package can decompress in place: the
compressed data is placed at the tail of a buffer and the decompressed
output overwrites the same buffer from the head (see DecompressInPlace
and RequiredOverlapMargin).

# Stream layout

A stream is a mix of control bytes and data bytes. Control bytes carry
bit flags and variable-length prefix codes, MSB first; a new control
byte is taken from the stream whenever the previous one is used up, so
control and data bytes interleave in a fixed, self-describing order.

The stream opens with the uncompressed length as a prefix-coded number;
the length field is 32 bits wide, so a single stream can represent at
most 4 GiB - 1 of data.
Then, for each token: a set flag bit introduces a literal (one data
byte); a clear flag bit introduces a match, coded as a prefix-coded
distance (with a one-byte low part) followed by a prefix-coded length.
A distance equal to the previous match's distance is coded in two bits.
A match with the reserved distance 0 terminates the stream, so a
decoder needs neither the header nor the input size to know where to
stop. The final control byte is zero-padded to a byte boundary.

Matches may be as short as two bytes, and a match's distance may be
smaller than its length, in which case it replays bytes it is itself
producing (run-length repetition).

# Compressing

	compressed := nrv.Compress(data)

or, to choose a speed/ratio trade-off, nrv.CompressLevel with a level
from 1 (fastest) to 9 (best). Compression never fails. The finders and
parsers in the parent package can also be combined manually with this
package's Encoder via ucl.Writer.

# Decompressing

	data, err := nrv.Decompress(compressed)

DecompressInto decodes into a caller-provided buffer. For in-place
decompression, size the shared buffer with RequiredOverlapMargin, copy
the compressed stream to its tail, and call DecompressInPlace.
*/
package nrv
