package link

import (
	"io"

	"github.com/acomagu/bufpipe"
)

// pipeEnd is one end of an in-memory serial line.
type pipeEnd struct {
	r *bufpipe.PipeReader
	w *bufpipe.PipeWriter
}

// Pipe creates a connected pair of in-memory serial lines. Writes never
// block, so either side may write before the other reads.
func Pipe() (io.ReadWriteCloser, io.ReadWriteCloser) {
	r1, w1 := bufpipe.New(nil)
	r2, w2 := bufpipe.New(nil)
	return &pipeEnd{r: r1, w: w2}, &pipeEnd{r: r2, w: w1}
}

func (p *pipeEnd) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

func (p *pipeEnd) Write(b []byte) (int, error) {
	return p.w.Write(b)
}

// Close closes both directions, the peer reads EOF.
func (p *pipeEnd) Close() error {
	p.w.Close()
	return p.r.Close()
}
