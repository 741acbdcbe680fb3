//go:build !linux || !arm || disablegpio

package main

// This file defines a simple hardware abstraction layer (HAL) for GPIO and
// ADC access.  It is the stub build used on desktop machines: pins read as
// idle and the sensors return plausible simulated values, so the daemon and
// its tests can run without Raspberry Pi hardware.  The real implementation
// lives in hal_rpi.go behind a build tag.

import (
	"math/rand"
	"time"
)

// initGPIO performs any global initialisation required to access GPIO pins.
// In the stub implementation it does nothing.  On the Pi this opens the
// periph host and the I2C bus.
func initGPIO() error {
	return nil
}

// readPin returns the logic level of the given GPIO pin.  The stub always
// returns true: with pull-up button wiring, high means not pressed.
func readPin(pin int) bool {
	return true
}

// setPin drives the given GPIO pin high or low.  The stub discards writes.
func setPin(pin int, high bool) {}

// armEdge configures the given pin as an input watching for a rising edge,
// so a later pulseIn call cannot miss a pulse that starts immediately.  The
// stub has nothing to configure.
func armEdge(pin int) error {
	return nil
}

// pulseIn measures the width of the next high pulse on the given pin.  The
// stub simulates an HC-SR04 echo for a target roughly 10 cm away.
func pulseIn(pin int, timeout time.Duration) (time.Duration, error) {
	jitter := time.Duration(rand.Intn(40)-20) * time.Microsecond
	return 583*time.Microsecond + jitter, nil
}

// readADC samples the given ADC channel.  The stub hovers around midscale
// with a little noise, like a quiet microphone.
func readADC(channel int) (int32, error) {
	return adcFullScale()/2 + int32(rand.Intn(21)) - 10, nil
}

// adcFullScale reports the ADC's full-scale raw value.  The stub simulates
// a 10-bit converter.
func adcFullScale() int32 {
	return 1024
}
