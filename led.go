package main

import "time"

// Led drives a single GPIO pin wired to an indicator LED (active high).
// It starts off and remembers its state so Toggle works without reading
// the pin back.
type Led struct {
	pin   int
	lit   bool
	set   func(pin int, high bool)
	sleep func(d time.Duration)
}

// NewLed binds an Led to a BCM pin and drives it low.
func NewLed(pin int) *Led {
	l := &Led{pin: pin, set: setPin, sleep: time.Sleep}
	l.Off()
	return l
}

// On lights the LED.
func (l *Led) On() {
	l.set(l.pin, true)
	l.lit = true
}

// Off darkens the LED.
func (l *Led) Off() {
	l.set(l.pin, false)
	l.lit = false
}

// Toggle inverts the LED state.
func (l *Led) Toggle() {
	if l.lit {
		l.Off()
	} else {
		l.On()
	}
}

// Blink flashes the LED n times with the given on/off period, then leaves
// it off.  It blocks for the duration of the pattern.
func (l *Led) Blink(n int, period time.Duration) {
	for i := 0; i < n; i++ {
		l.On()
		l.sleep(period)
		l.Off()
		l.sleep(period)
	}
}
