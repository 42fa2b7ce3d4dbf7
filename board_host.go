//go:build !baremetal && !(linux && (arm || arm64))

package main

const (
	boardName = "host"
	bootDelay = 0
)
