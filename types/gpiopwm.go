package types

// ------------------------
// Button
// ------------------------

type ButtonAction string

const (
	ButtonPush    ButtonAction = "push"
	ButtonRelease ButtonAction = "release"
)

type ButtonEvent struct {
	Pin    int          `json:"pin"`
	Action ButtonAction `json:"action"`
	TSms   int64        `json:"ts_ms"`
}

// ------------------------
// LED (boolean LED; logical level, polarity already applied)
// ------------------------

type LEDValue struct {
	Index int  `json:"index"`
	On    bool `json:"on"`
}

// ------------------------
// PWM
// ------------------------

type PWMValue struct {
	Channel int   `json:"channel"`
	Duty    uint8 `json:"duty"` // 0..100 percent, logical
}
