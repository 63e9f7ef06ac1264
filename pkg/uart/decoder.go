package uart

// State is the state of the frame decoder.
type State int

const (
	// WaitStart0 waits for the first start byte.
	WaitStart0 State = iota
	// WaitStart1 waits for the second start byte. Any other byte keeps
	// the decoder here rather than going back to WaitStart0.
	WaitStart1
	// WaitLength waits for the length byte.
	WaitLength
	// ReceiveData accumulates the frame payload.
	ReceiveData
)

var stateNames = [...]string{"WaitStart0", "WaitStart1", "WaitLength", "ReceiveData"}

// String implements fmt.Stringer.
func (s State) String() string {
	return stateNames[s]
}

// Frame markers and limits.
const (
	StartByte0 byte = 0x22
	StartByte1 byte = 0x69
	// MaxFrameSize is the largest payload a length byte may announce.
	MaxFrameSize = 251
)

type slot struct {
	ready  bool
	length int
	data   [MaxFrameSize]byte
}

// Decoder reassembles serial frames into a fixed pool of slots.
// Parse is the receive interrupt side, Poll the main loop side. Callers
// serialize the two (see Port).
type Decoder struct {
	state  State
	slots  []slot
	active *slot
	offset int

	rxCount uint32
}

// NewDecoder creates a decoder with the given number of reassembly slots.
func NewDecoder(buffers int) *Decoder {
	if buffers < 1 {
		buffers = 1
	}
	return &Decoder{slots: make([]slot, buffers)}
}

// State gets the current state.
func (d *Decoder) State() State {
	return d.state
}

// RxCount is the number of completed frames.
func (d *Decoder) RxCount() uint32 {
	return d.rxCount
}

// Parse consumes one byte. It returns true when a frame has completed.
func (d *Decoder) Parse(b byte) (ready bool) {
	switch d.state {
	case WaitStart0:
		if b == StartByte0 {
			d.state = WaitStart1
		}
	case WaitStart1:
		if b == StartByte1 {
			d.state = WaitLength
		}
	case WaitLength:
		if b == 0 || int(b) > MaxFrameSize {
			d.state = WaitStart1
			return
		}
		d.active = d.freeSlot()
		if d.active == nil {
			d.state = WaitStart0
			return
		}
		d.active.length, d.offset = int(b), 0
		d.state = ReceiveData
	case ReceiveData:
		d.active.data[d.offset] = b
		d.offset++
		if d.offset >= d.active.length {
			return d.frameReady()
		}
	}
	return
}

// Poll copies out the first ready slot in index order and frees it.
// It returns 0 when no frame is ready.
func (d *Decoder) Poll(dst []byte) int {
	for i := range d.slots {
		s := &d.slots[i]
		if s.ready {
			n := copy(dst, s.data[:s.length])
			s.ready = false
			return n
		}
	}
	return 0
}

// Pending is the number of ready slots.
func (d *Decoder) Pending() (n int) {
	for i := range d.slots {
		if d.slots[i].ready {
			n++
		}
	}
	return
}

// Reset drops partial and ready frames.
func (d *Decoder) Reset() {
	d.state, d.active, d.offset = WaitStart0, nil, 0
	for i := range d.slots {
		d.slots[i].ready = false
	}
}

func (d *Decoder) freeSlot() *slot {
	for i := range d.slots {
		if s := &d.slots[i]; !s.ready {
			return s
		}
	}
	return nil
}

func (d *Decoder) frameReady() bool {
	d.active.ready = true
	d.active = nil
	d.rxCount++
	d.state = WaitStart0
	return true
}
