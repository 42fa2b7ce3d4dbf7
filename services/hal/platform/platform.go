// Package platform provides core.Board implementations. Open is selected by
// build tags:
//
//   - hosts: in-process fakes with the UART on stdin/stdout
//   - Linux SBCs (arm, arm64): GPIO character device, sysfs PWM, termios UART
//   - rp2040/rp2350: machine pins, servo-frame PWM, uartx
//   - nrf: CLOCK peripheral, machine pins, servo-frame PWM, machine.UART0
package platform
