// Package uartfifo puts software RX/TX FIFOs in front of a serial port and
// reports activity through serialised events.
//
// A reader goroutine moves received bytes into the RX ring and posts one
// DataReady per byte. A TX pump drains the TX ring into the port and posts
// TxEmpty once it runs dry. A single dispatcher goroutine delivers every
// event to the handler, so handlers never run concurrently.
//
// A receive or transmit fault stops the FIFO: Done closes and the fault is
// delivered as a single CommunicationError, even when the event queue is
// full.
package uartfifo

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"boarddemo-go/errcode"
	"boarddemo-go/services/hal/core"
	"boarddemo-go/types"
	"boarddemo-go/x/ring"
)

type EventType uint8

const (
	DataReady EventType = iota
	CommunicationError
	FifoError
	TxEmpty
)

func (t EventType) String() string {
	switch t {
	case DataReady:
		return "data_ready"
	case CommunicationError:
		return "communication_error"
	case FifoError:
		return "fifo_error"
	case TxEmpty:
		return "tx_empty"
	default:
		return "unknown"
	}
}

type Event struct {
	Type EventType
	Err  error // set for CommunicationError and FifoError
}

// Handler receives the FIFO that raised the event so it can Get and Put.
type Handler func(f *FIFO, ev Event)

type Config struct {
	Baud        uint32
	FlowControl bool
	Parity      types.Parity
	RXFifo      int // power of two
	TXFifo      int // power of two
}

type FIFO struct {
	port core.SerialPort
	rx   *ring.Ring
	tx   *ring.Ring
	h    Handler

	txMu sync.Mutex
	evQ  chan Event

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	stop     chan struct{}
	stopOnce sync.Once
	fault    atomic.Pointer[Event]

	rxBytes  atomic.Uint32
	txBytes  atomic.Uint32
	rxDrops  atomic.Uint32
	overruns atomic.Uint32
}

// Open applies the line settings (when the port supports it) and starts the
// reader, TX pump and dispatcher. They stop when ctx ends or on Close.
func Open(ctx context.Context, port core.SerialPort, cfg Config, h Handler) (*FIFO, error) {
	if port == nil || h == nil || !ring.ValidSize(cfg.RXFifo) || !ring.ValidSize(cfg.TXFifo) {
		return nil, errcode.InvalidParams
	}
	if cfg.FlowControl {
		return nil, &errcode.E{C: errcode.Unsupported, Op: "uart.open", Msg: "flow control"}
	}
	if sc, ok := port.(core.SerialConfigurer); ok {
		if cfg.Baud != 0 {
			if err := sc.SetBaudRate(cfg.Baud); err != nil {
				return nil, errcode.Wrap("uart.open", err, errcode.DriverInit)
			}
		}
		if err := sc.SetFormat(8, 1, cfg.Parity); err != nil {
			return nil, errcode.Wrap("uart.open", err, errcode.DriverInit)
		}
	}

	f := &FIFO{
		port: port,
		rx:   ring.New(cfg.RXFifo),
		tx:   ring.New(cfg.TXFifo),
		h:    h,
		// One slot per RX byte plus room for error and TX events.
		evQ:  make(chan Event, cfg.RXFifo+8),
		stop: make(chan struct{}),
	}
	cctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	f.wg.Add(3)
	go f.reader(cctx)
	go f.pump(cctx)
	go f.dispatch(cctx)
	return f, nil
}

// Get removes one received byte. errcode.Empty when nothing is buffered.
func (f *FIFO) Get() (byte, error) {
	b, ok := f.rx.GetByte()
	if !ok {
		return 0, errcode.Empty
	}
	return b, nil
}

// Put queues one byte for transmission. errcode.NoMem when the TX ring is
// full.
func (f *FIFO) Put(b byte) error {
	f.txMu.Lock()
	ok := f.tx.PutByte(b)
	f.txMu.Unlock()
	if !ok {
		return errcode.NoMem
	}
	return nil
}

// Writable fires when a full TX ring gains space.
func (f *FIFO) Writable() <-chan struct{} { return f.tx.Writable() }

// Done is closed once the FIFO stops moving bytes: after Close or a
// transport fault. Callers waiting on Writable should also wait on Done.
func (f *FIFO) Done() <-chan struct{} { return f.stop }

// Flush discards received bytes not yet taken with Get. DataReady events
// already queued for them will find the ring empty.
func (f *FIFO) Flush() int {
	return f.rx.Discard()
}

// Close stops all goroutines and waits for them. It must not be called from
// the event handler.
func (f *FIFO) Close() error {
	f.once.Do(func() {
		f.halt()
		f.cancel()
		f.wg.Wait()
	})
	return nil
}

func (f *FIFO) Stats() types.SerialStats {
	return types.SerialStats{
		RxBytes:  f.rxBytes.Load(),
		TxBytes:  f.txBytes.Load(),
		RxDrops:  f.rxDrops.Load(),
		TxQLen:   uint32(f.tx.Available()),
		RxQLen:   uint32(f.rx.Available()),
		Overruns: f.overruns.Load(),
	}
}

func (f *FIFO) post(ev Event) {
	select {
	case f.evQ <- ev:
	default:
		f.overruns.Add(1)
	}
}

func (f *FIFO) halt() {
	f.stopOnce.Do(func() { close(f.stop) })
}

// fail records the first transport fault and stops the FIFO. The dispatcher
// delivers it once Done closes.
func (f *FIFO) fail(err error) {
	f.fault.CompareAndSwap(nil, &Event{Type: CommunicationError, Err: err})
	f.halt()
}

func (f *FIFO) reader(ctx context.Context) {
	defer f.wg.Done()
	var buf [64]byte
	for {
		n, err := f.port.RecvSomeContext(ctx, buf[:])
		for i := 0; i < n; i++ {
			f.rxBytes.Add(1)
			if !f.rx.PutByte(buf[i]) {
				f.rxDrops.Add(1)
				f.post(Event{Type: FifoError, Err: errcode.FifoError})
				continue
			}
			f.post(Event{Type: DataReady})
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			f.fail(err)
			return
		}
	}
}

func (f *FIFO) pump(ctx context.Context) {
	defer f.wg.Done()
	var buf [64]byte
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.tx.Readable():
		}
		for {
			n := f.tx.TryReadInto(buf[:])
			if n == 0 {
				break
			}
			if _, err := f.port.Write(buf[:n]); err != nil {
				f.fail(err)
				return
			}
			f.txBytes.Add(uint32(n))
		}
		f.post(Event{Type: TxEmpty})
	}
}

func (f *FIFO) dispatch(ctx context.Context) {
	defer f.wg.Done()
	stopped := f.stop
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-f.evQ:
			f.h(f, ev)
		case <-stopped:
			stopped = nil
			if ev := f.fault.Load(); ev != nil {
				f.h(f, *ev)
			}
		}
	}
}
