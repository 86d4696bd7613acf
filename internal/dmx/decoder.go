package dmx

// UniverseSize is the maximum number of slots in a DMX512 packet.
const UniverseSize = 512

// StartCodeDimmer is the null start code used for ordinary level data.
const StartCodeDimmer byte = 0x00

// Byte markers inserted by the tty layer when PARMRK is set.
const (
	markEscape byte = 0xFF
	markError  byte = 0x00
)

// Frame is one received DMX packet.
type Frame struct {
	StartCode byte
	Slots     []byte
}

// Clone returns a deep copy of f.
func (f Frame) Clone() Frame {
	return Frame{StartCode: f.StartCode, Slots: append([]byte(nil), f.Slots...)}
}

// DecoderStats counts what the decoder has seen.
type DecoderStats struct {
	Frames        uint64 // complete frames delivered
	Breaks        uint64 // line breaks detected
	FramingErrors uint64 // bytes marked as framing/parity errors
	Discarded     uint64 // data bytes outside a frame or beyond 512 slots
}

type escapeState int

const (
	escNone escapeState = iota
	escMarked
	escMarkedError
)

// Decoder turns a PARMRK-marked byte stream into frames.
//
// Marker sequences:
//   - FF FF: a literal 0xFF data byte
//   - FF 00 00: a break (framing error on a zero byte)
//   - FF 00 xx: a framing or parity error on byte xx
//
// A frame starts after a break and ends at the next break, or as soon as
// 512 slots have been received. A framing error inside a frame discards it.
type Decoder struct {
	onFrame func(Frame)

	esc     escapeState
	inFrame bool
	buf     []byte // start code + slots of the frame being assembled
	stats   DecoderStats
}

// NewDecoder returns a decoder that calls onFrame for each complete frame.
// The Frame passed to onFrame is only valid during the call; use Clone to
// keep it.
func NewDecoder(onFrame func(Frame)) *Decoder {
	return &Decoder{
		onFrame: onFrame,
		buf:     make([]byte, 0, UniverseSize+1),
	}
}

// Stats returns the decoder counters.
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}

// Write feeds raw bytes from the port. It never fails; it implements
// io.Writer so the decoder can sit behind io.Copy.
func (d *Decoder) Write(p []byte) (int, error) {
	for _, b := range p {
		d.feed(b)
	}
	return len(p), nil
}

func (d *Decoder) feed(b byte) {
	switch d.esc {
	case escNone:
		if b == markEscape {
			d.esc = escMarked
			return
		}
		d.data(b)
	case escMarked:
		switch b {
		case markEscape:
			d.esc = escNone
			d.data(markEscape)
		case markError:
			d.esc = escMarkedError
		default:
			// Not a valid marker; treat both bytes as data.
			d.esc = escNone
			d.data(markEscape)
			d.data(b)
		}
	case escMarkedError:
		d.esc = escNone
		if b == 0 {
			d.lineBreak()
			return
		}
		d.stats.FramingErrors++
		d.abort()
	}
}

func (d *Decoder) data(b byte) {
	if !d.inFrame {
		d.stats.Discarded++
		return
	}
	d.buf = append(d.buf, b)
	if len(d.buf) == UniverseSize+1 {
		d.emit()
		d.inFrame = false
	}
}

func (d *Decoder) lineBreak() {
	d.stats.Breaks++
	if d.inFrame {
		d.emit()
	}
	d.inFrame = true
	d.buf = d.buf[:0]
}

func (d *Decoder) abort() {
	if d.inFrame {
		d.stats.Discarded += uint64(len(d.buf))
	}
	d.inFrame = false
	d.buf = d.buf[:0]
}

// emit delivers the buffered frame. A break with no start code after it is
// not a frame.
func (d *Decoder) emit() {
	if len(d.buf) == 0 {
		return
	}
	d.stats.Frames++
	if d.onFrame != nil {
		d.onFrame(Frame{StartCode: d.buf[0], Slots: d.buf[1:]})
	}
	d.buf = d.buf[:0]
}
