// Package command implements the line-oriented control protocol: framing
// over stdin and unix-socket connections, the command grammar, and the
// polling multiplexer that feeds both into the daemon loop.
package command

// BufferCap is the maximum length of a command line, terminator included.
// Lines that fill the buffer before a terminator arrives are discarded.
const BufferCap = 256

// LineBuffer accumulates bytes for one connection until a full line is
// available. The skip flag marks an overlong line whose remainder must be
// discarded up to the next terminator.
type LineBuffer struct {
	buf  [BufferCap]byte
	n    int
	skip bool
}

// Tail returns the unused portion of the buffer for the next read.
func (b *LineBuffer) Tail() []byte { return b.buf[b.n:] }

// Len returns the number of buffered bytes awaiting a terminator.
func (b *LineBuffer) Len() int { return b.n }

// Skipping reports whether the buffer is discarding an overlong line.
func (b *LineBuffer) Skipping() bool { return b.skip }

// Reset clears all state for slot reuse.
func (b *LineBuffer) Reset() {
	b.n = 0
	b.skip = false
}

// Consume records count bytes read into Tail, of which the byte at relative
// offset nl is the line terminator (nl < 0 when none was read). It returns
// the completed line without its terminator, or ok=false when no line is
// ready: either the read was partial, or the line was overlong and dropped.
//
// The returned slice aliases the buffer and is only valid until the next
// method call.
func (b *LineBuffer) Consume(count, nl int) (line []byte, ok bool) {
	if nl < 0 {
		b.n += count
		if b.n >= BufferCap {
			b.n = 0
			b.skip = true
		}
		return nil, false
	}
	end := b.n + nl
	b.n = 0
	if b.skip {
		b.skip = false
		return nil, false
	}
	return b.buf[:end], true
}

// Fill records count bytes read into Tail and extracts every complete line
// in the buffer, retaining any trailing partial line. Unlike Consume it
// handles reads spanning multiple lines, which happens on stream inputs
// that cannot be peeked, like stdin.
//
// The returned slices are copies and remain valid.
func (b *LineBuffer) Fill(count int) [][]byte {
	end := b.n + count
	var lines [][]byte
	start := 0
	for i := b.n; i < end; i++ {
		if b.buf[i] != '\n' {
			continue
		}
		if b.skip {
			b.skip = false
		} else {
			line := make([]byte, i-start)
			copy(line, b.buf[start:i])
			lines = append(lines, line)
		}
		start = i + 1
	}
	rem := end - start
	copy(b.buf[:rem], b.buf[start:end])
	b.n = rem
	if b.n >= BufferCap {
		b.n = 0
		b.skip = true
	}
	return lines
}
