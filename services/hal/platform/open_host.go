//go:build !baremetal && !(linux && (arm || arm64))

package platform

import (
	"os"

	"boarddemo-go/services/config"
	"boarddemo-go/services/hal/core"
)

// Open returns a host board; the configured UART is bound to stdin/stdout.
func Open(cfg config.BoardConfig) (core.Board, error) {
	return NewHost(cfg.UART.ID, os.Stdin, os.Stdout).Board(cfg.Name), nil
}
