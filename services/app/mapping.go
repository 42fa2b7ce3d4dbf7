package app

import (
	"boarddemo-go/services/config"
	"boarddemo-go/types"
)

// Mapping ties the two buttons to their LED2 level and PWM duty.
type Mapping struct {
	PinA, PinB   int
	DutyA, DutyB uint8
}

func MappingFrom(cfg config.Config) Mapping {
	m := Mapping{DutyA: cfg.PWM.DutyA, DutyB: cfg.PWM.DutyB, PinA: -1, PinB: -1}
	if len(cfg.Board.Buttons) > 0 {
		m.PinA = cfg.Board.Buttons[0]
	}
	if len(cfg.Board.Buttons) > 1 {
		m.PinB = cfg.Board.Buttons[1]
	}
	return m
}

// Reaction is what a button push asks of the outputs.
type Reaction struct {
	LED2 bool // on
	Duty uint8
}

// DutyFor returns the reaction to a button action. Releases and unknown
// pins leave the outputs unchanged (ok is false).
func DutyFor(m Mapping, pin int, act types.ButtonAction) (Reaction, bool) {
	if act != types.ButtonPush {
		return Reaction{}, false
	}
	switch pin {
	case m.PinA:
		return Reaction{LED2: true, Duty: m.DutyA}, true
	case m.PinB:
		return Reaction{LED2: false, Duty: m.DutyB}, true
	}
	return Reaction{}, false
}
