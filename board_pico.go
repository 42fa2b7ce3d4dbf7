//go:build rp2040 || rp2350

package main

import "time"

const (
	boardName = "pico"
	bootDelay = 2 * time.Second
)
