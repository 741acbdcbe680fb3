package main

import "time"

// selection identifies which sensor a button press has picked, if any.
type selection int

const (
	selectNone selection = iota
	selectUltrasonic
	selectSound
)

// buttonSelector polls the two pushbuttons and debounces them in software.
// Both buttons are wired to ground with the pin pulled up, so a low read
// means pressed.  A press within the debounce window of the previously
// accepted press of the same button is ignored.  When both buttons are
// down the ultrasonic one wins.
type buttonSelector struct {
	ultraPin int
	soundPin int
	debounce time.Duration

	lastUltra time.Time
	lastSound time.Time

	read func(pin int) bool
	now  func() time.Time
}

func newButtonSelector(ultraPin, soundPin int, debounce time.Duration) *buttonSelector {
	return &buttonSelector{
		ultraPin: ultraPin,
		soundPin: soundPin,
		debounce: debounce,
		read:     readPin,
		now:      time.Now,
	}
}

// Poll samples both buttons once and returns an accepted selection, or
// selectNone when nothing (new) is pressed.
func (b *buttonSelector) Poll() selection {
	// active low (pull-up wiring)
	ultraPressed := !b.read(b.ultraPin)
	soundPressed := !b.read(b.soundPin)

	now := b.now()
	if ultraPressed && now.Sub(b.lastUltra) > b.debounce {
		b.lastUltra = now
		return selectUltrasonic
	}
	if soundPressed && now.Sub(b.lastSound) > b.debounce {
		b.lastSound = now
		return selectSound
	}
	return selectNone
}
