//go:build nrf

package main

import "time"

const (
	boardName = "pca10040"
	bootDelay = 2 * time.Second
)
