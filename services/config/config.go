package config

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"boarddemo-go/bus"
	"boarddemo-go/services/hal/core"
	"boarddemo-go/types"
	"boarddemo-go/x/strx"
)

const configPrefix = "config"

//go:embed boards/*.yaml
var boardFS embed.FS

// EmbeddedConfigLookup allows overriding how board configs are resolved.
var EmbeddedConfigLookup = func(board string) ([]byte, bool) {
	b, err := boardFS.ReadFile("boards/" + board + ".yaml")
	if err != nil {
		return nil, false
	}
	return b, true
}

type Config struct {
	Board     BoardConfig     `yaml:"board"`
	Clock     ClockConfig     `yaml:"clock"`
	Timer     TimerConfig     `yaml:"timer"`
	Buttons   ButtonsConfig   `yaml:"buttons"`
	PWM       PWMConfig       `yaml:"pwm"`
	UART      UARTConfig      `yaml:"uart"`
	Echo      EchoConfig      `yaml:"echo"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
}

type BoardConfig struct {
	Name    string      `yaml:"name"`
	LEDs    []int       `yaml:"leds"`
	Buttons []int       `yaml:"buttons"` // [A, B]
	PWMPins []int       `yaml:"pwm_pins"`
	UART    UARTPinsCfg `yaml:"uart"`
}

type UARTPinsCfg struct {
	ID string `yaml:"id"`
	TX int    `yaml:"tx"`
	RX int    `yaml:"rx"`
}

type ClockConfig struct {
	Source string `yaml:"source"` // rc | xtal | synth
}

type TimerConfig struct {
	Interval  time.Duration `yaml:"interval"`
	MaxTimers int           `yaml:"max_timers"`
}

type ButtonsConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

type PWMConfig struct {
	Period       time.Duration `yaml:"period"`
	Initial      uint8         `yaml:"initial"`
	DutyA        uint8         `yaml:"duty_a"`
	DutyB        uint8         `yaml:"duty_b"`
	ActiveLow    bool          `yaml:"active_low"`
	RetryPeriods int           `yaml:"retry_periods"`
}

type UARTConfig struct {
	Baud        uint32       `yaml:"baud"`
	FlowControl bool         `yaml:"flow_control"`
	Parity      types.Parity `yaml:"-"`
	ParityName  string       `yaml:"parity"`
	RXFifo      int          `yaml:"rx_fifo"`
	TXFifo      int          `yaml:"tx_fifo"`
}

type EchoConfig struct {
	LineCapacity int `yaml:"line_capacity"`
}

// HeartbeatConfig sets how often the status summary is published.
type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Default returns the demo's fixed parameters.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	c.Board.Name = strx.Coalesce(c.Board.Name, "host")
	if len(c.Board.LEDs) == 0 {
		c.Board.LEDs = []int{17, 18, 19}
	}
	if len(c.Board.Buttons) == 0 {
		c.Board.Buttons = []int{13, 14}
	}
	if len(c.Board.PWMPins) == 0 {
		c.Board.PWMPins = []int{4}
	}
	c.Board.UART.ID = strx.Coalesce(c.Board.UART.ID, "uart0")
	c.Clock.Source = strx.Coalesce(c.Clock.Source, "rc")
	if c.Timer.Interval == 0 {
		c.Timer.Interval = time.Second
	}
	if c.Timer.MaxTimers == 0 {
		c.Timer.MaxTimers = 4
	}
	if c.Buttons.Debounce == 0 {
		c.Buttons.Debounce = 50 * time.Millisecond
	}
	if c.PWM.Period == 0 {
		c.PWM.Period = 20 * time.Millisecond
	}
	if c.PWM.DutyA == 0 {
		c.PWM.DutyA = 12
	}
	if c.PWM.DutyB == 0 {
		c.PWM.DutyB = 4
	}
	if c.PWM.RetryPeriods == 0 {
		c.PWM.RetryPeriods = 4
	}
	if c.UART.Baud == 0 {
		c.UART.Baud = 115200
	}
	c.UART.ParityName = strx.Coalesce(c.UART.ParityName, "none")
	if c.UART.RXFifo == 0 {
		c.UART.RXFifo = 256
	}
	if c.UART.TXFifo == 0 {
		c.UART.TXFifo = 256
	}
	if c.Echo.LineCapacity == 0 {
		c.Echo.LineCapacity = 32
	}
	if c.Heartbeat.Interval == 0 {
		c.Heartbeat.Interval = 5 * time.Second
	}
}

// Validate checks ranges after defaults are applied.
func (c *Config) Validate() error {
	if len(c.Board.LEDs) < 2 {
		return errors.New("board.leds needs at least 2 pins")
	}
	if len(c.Board.Buttons) != 2 {
		return errors.New("board.buttons must list exactly 2 pins")
	}
	if len(c.Board.PWMPins) < 1 || len(c.Board.PWMPins) > 2 {
		return errors.New("board.pwm_pins must list 1 or 2 pins")
	}
	if _, ok := ParseClockSource(c.Clock.Source); !ok {
		return fmt.Errorf("clock.source must be rc, xtal or synth (got %q)", c.Clock.Source)
	}
	if c.Timer.Interval <= 0 {
		return errors.New("timer.interval must be > 0")
	}
	if c.Timer.MaxTimers < 1 {
		return errors.New("timer.max_timers must be >= 1")
	}
	if c.Buttons.Debounce < 0 {
		return errors.New("buttons.debounce must be >= 0")
	}
	if c.PWM.Period <= 0 {
		return errors.New("pwm.period must be > 0")
	}
	if c.PWM.Initial > 100 || c.PWM.DutyA > 100 || c.PWM.DutyB > 100 {
		return errors.New("pwm duty values must be within 0..100")
	}
	if c.PWM.RetryPeriods < 1 {
		return errors.New("pwm.retry_periods must be >= 1")
	}
	p, ok := parseParity(c.UART.ParityName)
	if !ok {
		return fmt.Errorf("uart.parity must be none, even or odd (got %q)", c.UART.ParityName)
	}
	c.UART.Parity = p
	if !powerOfTwo(c.UART.RXFifo) || !powerOfTwo(c.UART.TXFifo) {
		return errors.New("uart.rx_fifo and uart.tx_fifo must be powers of two")
	}
	if c.Echo.LineCapacity < 1 {
		return errors.New("echo.line_capacity must be >= 1")
	}
	if c.Heartbeat.Interval <= 0 {
		return errors.New("heartbeat.interval must be > 0")
	}
	return nil
}

// Parse decodes YAML, applies defaults and validates.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses a YAML file.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// ForBoard returns the embedded configuration for a board name.
func ForBoard(name string) (Config, error) {
	raw, ok := EmbeddedConfigLookup(name)
	if !ok || len(raw) == 0 {
		return Config{}, errors.New("no embedded config for board: " + name)
	}
	return Parse(raw)
}

// Marshal renders the effective configuration as YAML.
func (c Config) Marshal() ([]byte, error) { return yaml.Marshal(c) }

// ParseClockSource maps the config spelling to a core.ClockSource.
func ParseClockSource(s string) (core.ClockSource, bool) {
	switch s {
	case "rc":
		return core.ClockRC, true
	case "xtal":
		return core.ClockXtal, true
	case "synth":
		return core.ClockSynth, true
	}
	return 0, false
}

func parseParity(s string) (types.Parity, bool) {
	switch s {
	case "none":
		return types.ParityNone, true
	case "even":
		return types.ParityEven, true
	case "odd":
		return types.ParityOdd, true
	}
	return 0, false
}

func powerOfTwo(n int) bool { return n >= 2 && n&(n-1) == 0 }

// Publish puts each section on the bus as a retained config/<section>
// message.
func Publish(conn *bus.Connection, c Config) {
	sections := []struct {
		key string
		val any
	}{
		{"board", c.Board},
		{"clock", c.Clock},
		{"timer", c.Timer},
		{"buttons", c.Buttons},
		{"pwm", c.PWM},
		{"uart", c.UART},
		{"echo", c.Echo},
		{"heartbeat", c.Heartbeat},
	}
	for _, s := range sections {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, s.key), s.val, true))
	}
}
