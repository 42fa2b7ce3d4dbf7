//go:build !baremetal && linux && (arm || arm64)

package main

const (
	boardName = "rpi"
	bootDelay = 0
)
