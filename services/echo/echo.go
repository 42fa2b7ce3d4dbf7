// Package echo frames UART input into lines and transmits each completed
// line back out.
package echo

import (
	"context"
	"sync/atomic"

	"boarddemo-go/bus"
	"boarddemo-go/drivers/uartfifo"
	"boarddemo-go/errcode"
	"boarddemo-go/types"
)

// Port is the FIFO side the echo needs.
type Port interface {
	Get() (byte, error)
	Put(b byte) error
	Writable() <-chan struct{}
	Done() <-chan struct{} // closed once the port stops transmitting
}

type Option func(*Echo)

// WithBus publishes every echoed line on io/serial/<name>/line.
func WithBus(conn *bus.Connection, name string) Option {
	return func(e *Echo) { e.conn, e.name = conn, name }
}

// WithFatal sets the handler for transport faults.
func WithFatal(fn func(error)) Option {
	return func(e *Echo) { e.fatal = fn }
}

type Echo struct {
	ctx    context.Context
	framer *Framer
	conn   *bus.Connection
	name   string
	fatal  func(error)

	lines atomic.Uint32
}

// New returns an echo whose blocking transmits give up when ctx ends.
func New(ctx context.Context, capacity int, opts ...Option) *Echo {
	e := &Echo{ctx: ctx, framer: NewFramer(capacity), name: "uart0"}
	for _, o := range opts {
		o(e)
	}
	return e
}

// HandleFIFO adapts Handle to uartfifo.Handler.
func (e *Echo) HandleFIFO(f *uartfifo.FIFO, ev uartfifo.Event) { e.Handle(f, ev) }

// Handle processes one FIFO event. It must be called serially.
func (e *Echo) Handle(p Port, ev uartfifo.Event) {
	switch ev.Type {
	case uartfifo.DataReady:
		b, err := p.Get()
		if err != nil {
			return // flushed
		}
		line, ok := e.framer.Feed(b)
		if !ok {
			return
		}
		if !e.transmit(p, line.Data) {
			return
		}
		e.lines.Add(1)
		if line.Truncated > 0 {
			println("[echo] line truncated, dropped", line.Truncated, "bytes")
		}
		if e.conn != nil {
			e.conn.Publish(e.conn.NewMessage(
				bus.T("io", "serial", e.name, "line"),
				types.SerialLine{Port: e.name, Data: line.Data, Truncated: line.Truncated},
				false,
			))
		}

	case uartfifo.CommunicationError:
		e.raise(errcode.CommunicationError, ev.Err)
	case uartfifo.FifoError:
		e.raise(errcode.FifoError, ev.Err)
	case uartfifo.TxEmpty:
	}
}

// transmit puts each byte, waiting for TX space while the ring is full. It
// gives up when ctx ends or the port stops; the port reports its own fault.
func (e *Echo) transmit(p Port, data []byte) bool {
	for _, b := range data {
		for {
			err := p.Put(b)
			if err == nil {
				break
			}
			if !errcode.Is(err, errcode.NoMem) {
				e.raise(errcode.Of(err), err)
				return false
			}
			select {
			case <-e.ctx.Done():
				return false
			case <-p.Done():
				return false
			case <-p.Writable():
			}
		}
	}
	return true
}

func (e *Echo) raise(c errcode.Code, cause error) {
	err := &errcode.E{C: c, Op: "uart.event", Err: cause}
	if e.fatal != nil {
		e.fatal(err)
		return
	}
	println("[echo] fatal:", err.Error())
}

// Cursor is the write cursor of the line in progress.
func (e *Echo) Cursor() int { return e.framer.Len() }

// Lines counts lines echoed so far.
func (e *Echo) Lines() uint32 { return e.lines.Load() }
