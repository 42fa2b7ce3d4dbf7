package types

// ------------------------
// Serial
// ------------------------

type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

func (p Parity) String() string {
	switch p {
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	default:
		return "none"
	}
}

func (p Parity) MarshalJSON() ([]byte, error) { return []byte(`"` + p.String() + `"`), nil }

// SerialLine is one echoed line including its terminating line feed.
type SerialLine struct {
	Port      string `json:"port"`
	Data      []byte `json:"data"`
	Truncated uint32 `json:"truncated,omitempty"` // bytes dropped from this line
}

type SerialStats struct {
	RxBytes  uint32 `json:"rx_bytes"`
	TxBytes  uint32 `json:"tx_bytes"`
	RxDrops  uint32 `json:"rx_drops"`
	TxQLen   uint32 `json:"tx_qlen"`
	RxQLen   uint32 `json:"rx_qlen"`
	Overruns uint32 `json:"overruns"`
}
