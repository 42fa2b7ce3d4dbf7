//go:build rp2040 || rp2350 || nrf

package platform

import (
	"machine"
	"time"

	"tinygo.org/x/drivers/servo"

	"boarddemo-go/errcode"
	"boarddemo-go/x/mathx"
)

// servoFrame is the fixed period servo.New programs into the controller.
const servoFrame = 20 * time.Millisecond

// servoPWM drives one channel through the servo driver. Duty percent maps
// onto the 20 ms frame as a pulse width in microseconds.
type servoPWM struct {
	pin  int
	mp   machine.Pin
	ctrl servo.PWM
	s    servo.Servo
	ok   bool
}

func (o *servoPWM) Pin() int { return o.pin }

func (o *servoPWM) Configure(period time.Duration) error {
	if period != servoFrame {
		return &errcode.E{C: errcode.Unsupported, Op: "pwm.configure", Msg: "period must be 20ms"}
	}
	s, err := servo.New(o.ctrl, o.mp)
	if err != nil {
		return err
	}
	o.s = s
	o.ok = true
	return nil
}

func (o *servoPWM) SetDuty(pct uint8) {
	if !o.ok {
		return
	}
	us := mathx.ScalePercent(pct, uint32(servoFrame/time.Microsecond))
	o.s.SetMicroseconds(int16(us))
}
