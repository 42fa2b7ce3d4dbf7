//go:build !baremetal && linux && (arm || arm64)

package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"

	"boarddemo-go/errcode"
	"boarddemo-go/services/config"
	"boarddemo-go/services/hal/core"
	"boarddemo-go/types"
	"boarddemo-go/x/mathx"
)

const consumer = "boarddemo"

// Open builds a board from the Linux GPIO character device, sysfs PWM and
// the configured tty.
func Open(cfg config.BoardConfig) (core.Board, error) {
	sp, err := openSerial(cfg.UART.ID, 115200)
	if err != nil {
		return core.Board{}, fmt.Errorf("open %s: %w", cfg.UART.ID, err)
	}
	return core.Board{
		Name:   cfg.Name,
		Clock:  &SoftClock{},
		Pins:   &cdevPinFactory{pins: map[int]*cdevPin{}},
		PWM:    sysfsPWMFactory{},
		Serial: linuxSerialFactory{cfg.UART.ID: sp},
	}, nil
}

// ----------------------------- GPIO (cdev) -----------------------------------

type cdevPinFactory struct {
	mu   sync.Mutex
	pins map[int]*cdevPin
}

// ByNumber resolves BCM numbering through the "GPIO<n>" line names the
// Raspberry Pi kernels expose.
func (f *cdevPinFactory) ByNumber(n int) (core.GPIOPin, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pins[n]; ok {
		return p, true
	}
	chip, offset, err := findLine(fmt.Sprintf("GPIO%d", n))
	if err != nil {
		println("[platform] gpio", n, "not found:", err.Error())
		return nil, false
	}
	p := &cdevPin{n: n, chip: chip, offset: offset}
	f.pins[n] = p
	return p, true
}

func findLine(name string) (*gpiocdev.Chip, int, error) {
	chips := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "gpiochip") {
			chips = append(chips, filepath.Join("/dev", e.Name()))
		}
	}
	for _, path := range chips {
		chip, err := gpiocdev.NewChip(path)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(name)
		if err != nil {
			_ = chip.Close()
			continue
		}
		return chip, offset, nil
	}
	return nil, 0, fmt.Errorf("gpio line %q not found", name)
}

type cdevPin struct {
	mu     sync.Mutex
	n      int
	chip   *gpiocdev.Chip
	offset int
	line   *gpiocdev.Line
	level  bool

	irqEdge atomic.Uint32
	irq     atomic.Pointer[func()]
}

func (p *cdevPin) Number() int { return p.n }

func (p *cdevPin) ConfigureInput(pull core.Pull) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line != nil {
		_ = p.line.Close()
		p.line = nil
	}
	var bias gpiocdev.LineReqOption
	switch pull {
	case core.PullUp:
		bias = gpiocdev.WithPullUp
	case core.PullDown:
		bias = gpiocdev.WithPullDown
	default:
		bias = gpiocdev.WithBiasDisabled
	}
	// Edges are always requested; SetIRQ only chooses which ones reach the
	// handler.
	l, err := p.chip.RequestLine(p.offset,
		gpiocdev.AsInput, bias, gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(p.onEvent),
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		return err
	}
	p.line = l
	return nil
}

func (p *cdevPin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line != nil {
		_ = p.line.Close()
		p.line = nil
	}
	l, err := p.chip.RequestLine(p.offset, gpiocdev.AsOutput(b2i(initial)), gpiocdev.WithConsumer(consumer))
	if err != nil {
		return err
	}
	p.line = l
	p.level = initial
	return nil
}

func (p *cdevPin) Set(level bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return
	}
	if err := p.line.SetValue(b2i(level)); err == nil {
		p.level = level
	}
}

func (p *cdevPin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return false
	}
	v, err := p.line.Value()
	if err != nil {
		return p.level
	}
	return v != 0
}

func (p *cdevPin) Toggle() { p.Set(!p.Get()) }

func (p *cdevPin) SetIRQ(edge core.Edge, handler func()) error {
	p.irqEdge.Store(uint32(edge))
	p.irq.Store(&handler)
	return nil
}

func (p *cdevPin) ClearIRQ() error {
	p.irqEdge.Store(uint32(core.EdgeNone))
	p.irq.Store(nil)
	return nil
}

// onEvent runs on the gpiocdev watcher goroutine.
func (p *cdevPin) onEvent(evt gpiocdev.LineEvent) {
	h := p.irq.Load()
	if h == nil {
		return
	}
	var seen core.Edge
	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		seen = core.EdgeRising
	case gpiocdev.LineEventFallingEdge:
		seen = core.EdgeFalling
	}
	want := core.Edge(p.irqEdge.Load())
	if want == core.EdgeBoth || want == seen {
		(*h)()
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ----------------------------- PWM (sysfs) -----------------------------------

var pwmSysfsBase = "/sys/class/pwm"

// With the pwm-2chan overlay, GPIO18/12 drive channel 0 and GPIO19/13
// channel 1 of the first pwmchip.
var pwmChannelByPin = map[int]int{12: 0, 18: 0, 13: 1, 19: 1}

type sysfsPWMFactory struct{}

func (sysfsPWMFactory) ByPin(pin int) (core.PWMOutput, error) {
	ch, ok := pwmChannelByPin[pin]
	if !ok {
		return nil, &errcode.E{C: errcode.UnknownPin, Op: "pwm.open", Msg: "gpio " + strconv.Itoa(pin) + " has no pwm channel"}
	}
	chip, err := findPWMChip()
	if err != nil {
		return nil, err
	}
	return &sysfsPWM{
		pin:      pin,
		chipPath: chip,
		channel:  ch,
		pwmPath:  filepath.Join(chip, "pwm"+strconv.Itoa(ch)),
	}, nil
}

func findPWMChip() (string, error) {
	entries, err := os.ReadDir(pwmSysfsBase)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", pwmSysfsBase, err)
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "pwmchip") {
			continue
		}
		chip := filepath.Join(pwmSysfsBase, e.Name())
		if n, err := readInt(filepath.Join(chip, "npwm")); err == nil && n > 0 {
			return chip, nil
		}
	}
	return "", errors.New("no sysfs pwmchip found (is the pwm overlay enabled?)")
}

type sysfsPWM struct {
	pin      int
	chipPath string
	pwmPath  string
	channel  int

	mu       sync.Mutex
	periodNS uint32
	enabled  bool
}

func (d *sysfsPWM) Pin() int { return d.pin }

func (d *sysfsPWM) Configure(period time.Duration) error {
	if period <= 0 {
		return errcode.InvalidParams
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureExported(); err != nil {
		return err
	}
	// Period can only change while disabled.
	_ = writeSysfs(filepath.Join(d.pwmPath, "enable"), "0")
	d.enabled = false
	ns := uint32(period.Nanoseconds())
	if err := writeSysfs(filepath.Join(d.pwmPath, "period"), strconv.FormatUint(uint64(ns), 10)); err != nil {
		return err
	}
	d.periodNS = ns
	return nil
}

func (d *sysfsPWM) SetDuty(pct uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	duty := mathx.ScalePercent(pct, d.periodNS)
	if err := writeSysfs(filepath.Join(d.pwmPath, "duty_cycle"), strconv.FormatUint(uint64(duty), 10)); err != nil {
		println("[platform] pwm duty:", err.Error())
		return
	}
	if !d.enabled {
		if err := writeSysfs(filepath.Join(d.pwmPath, "enable"), "1"); err == nil {
			d.enabled = true
		}
	}
}

func (d *sysfsPWM) ensureExported() error {
	if _, err := os.Stat(d.pwmPath); err == nil {
		return nil
	}
	if err := writeSysfs(filepath.Join(d.chipPath, "export"), strconv.Itoa(d.channel)); err != nil {
		if _, statErr := os.Stat(d.pwmPath); statErr == nil {
			return nil
		}
		return fmt.Errorf("export pwm: %w", err)
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(d.pwmPath); err == nil {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("pwm path %s not created after export", d.pwmPath)
}

// writeSysfs opens without O_TRUNC/O_CREATE and retries briefly: freshly
// exported attributes can be unreadable until udev fixes permissions.
func writeSysfs(path, value string) error {
	deadline := time.Now().Add(2 * time.Second)
	for {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err == nil {
			_, err = f.WriteString(value)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err == nil {
				return nil
			}
		}
		if !time.Now().Before(deadline) || !isRetryableSysfsErr(err) {
			return err
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func isRetryableSysfsErr(err error) bool {
	return os.IsPermission(err) || os.IsNotExist(err) ||
		errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.ENOENT)
}

func readInt(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

// ----------------------------- Serial (termios) ------------------------------

type linuxSerialFactory map[string]core.SerialPort

func (f linuxSerialFactory) ByID(id string) (core.SerialPort, bool) {
	p, ok := f[id]
	return p, ok
}

type termiosPort struct {
	f  *os.File
	fd int

	mu sync.Mutex // guards termios updates
}

func openSerial(path string, baud uint32) (*termiosPort, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CRTSCTS
	t.Cflag |= unix.CS8 | unix.CLOCAL | unix.CREAD
	// Reads return after 100 ms without data so receives can observe ctx.
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 1
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return nil, err
	}

	p := &termiosPort{f: os.NewFile(uintptr(fd), path), fd: fd}
	if p.f == nil {
		return nil, errors.New("os.NewFile failed")
	}
	if err := p.SetBaudRate(baud); err != nil {
		return nil, err
	}
	ok = true
	return p, nil
}

func (p *termiosPort) Write(b []byte) (int, error) { return p.f.Write(b) }

func (p *termiosPort) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := p.f.Read(buf)
		if n > 0 {
			return n, nil
		}
		// VTIME expiry reads as EOF on a tty.
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
	}
}

func (p *termiosPort) update(fn func(t *unix.Termios) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, err := unix.IoctlGetTermios(p.fd, unix.TCGETS)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		return err
	}
	return unix.IoctlSetTermios(p.fd, unix.TCSETS, t)
}

func (p *termiosPort) SetBaudRate(baud uint32) error {
	spd, err := baudToUnix(baud)
	if err != nil {
		return err
	}
	return p.update(func(t *unix.Termios) error {
		t.Cflag &^= unix.CBAUD
		t.Cflag |= spd
		t.Ispeed = spd
		t.Ospeed = spd
		return nil
	})
}

func (p *termiosPort) SetFormat(dataBits, stopBits uint8, parity types.Parity) error {
	var size uint32
	switch dataBits {
	case 5:
		size = unix.CS5
	case 6:
		size = unix.CS6
	case 7:
		size = unix.CS7
	case 8:
		size = unix.CS8
	default:
		return errcode.InvalidParams
	}
	return p.update(func(t *unix.Termios) error {
		t.Cflag &^= unix.CSIZE | unix.CSTOPB | unix.PARENB | unix.PARODD
		t.Cflag |= size
		if stopBits == 2 {
			t.Cflag |= unix.CSTOPB
		}
		switch parity {
		case types.ParityEven:
			t.Cflag |= unix.PARENB
		case types.ParityOdd:
			t.Cflag |= unix.PARENB | unix.PARODD
		}
		return nil
	})
}

func baudToUnix(baud uint32) (uint32, error) {
	switch baud {
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	default:
		return 0, &errcode.E{C: errcode.InvalidParams, Op: "uart.baud", Msg: "unsupported baud " + strconv.FormatUint(uint64(baud), 10)}
	}
}
