//go:build linux && arm && !disablegpio
// +build linux,arm,!disablegpio

// This file provides the Raspberry Pi implementation of the HAL functions
// using the periph.io library.  When cross-compiling on other platforms or
// when the build tag "disablegpio" is specified, hal.go is used instead.
// Digital pins are addressed by their BCM numbers; the microphone is read
// through an ADS1115 on the I2C bus.

package main

import (
	"fmt"
	"sync"
	"time"

	// Use the new periph module layout.  See https://periph.io/news/2020/a_new_start/
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

// initGPIO initialises periph host state.  Returning an error here will
// prevent the daemon from starting.  This function is called once during
// startup; the ADC is opened lazily on first use so a missing ADS1115 does
// not keep the ultrasonic side from working.
func initGPIO() error {
	_, err := host.Init()
	return err
}

func pinByNumber(pin int) gpio.PinIO {
	return gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
}

// readPin reads the specified GPIO pin and returns true if the voltage level
// is high.  Buttons are wired to ground, so the pin is pulled up and a low
// read means pressed.  If the pin name is invalid it reads as high (idle).
func readPin(pin int) bool {
	p := pinByNumber(pin)
	if p == nil {
		return true
	}
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return true
	}
	return p.Read() == gpio.High
}

// setPin drives the specified GPIO pin high or low.  Errors are ignored;
// a failed write behaves like a stuck pin and surfaces as a sensor timeout.
func setPin(pin int, high bool) {
	p := pinByNumber(pin)
	if p == nil {
		return
	}
	if high {
		_ = p.Out(gpio.High)
	} else {
		_ = p.Out(gpio.Low)
	}
}

// armEdge switches the given pin to an input watching for a rising edge.
// Callers arm before triggering the measurement: a target a few centimetres
// away raises echo within ~150µs, and reconfiguring the pin after the
// trigger races that edge.
func armEdge(pin int) error {
	p := pinByNumber(pin)
	if p == nil {
		return fmt.Errorf("no GPIO pin numbered %d", pin)
	}
	return p.In(gpio.PullDown, gpio.RisingEdge)
}

// pulseIn measures the width of the next high pulse on a pin armed with
// armEdge, by waiting for the rising then the falling edge.  The HC-SR04
// holds echo high for the ultrasonic round-trip time.
func pulseIn(pin int, timeout time.Duration) (time.Duration, error) {
	p := pinByNumber(pin)
	if p == nil {
		return 0, fmt.Errorf("no GPIO pin numbered %d", pin)
	}
	if !p.WaitForEdge(timeout) {
		return 0, fmt.Errorf("timeout waiting for pulse on GPIO%d", pin)
	}
	start := time.Now()
	if err := p.In(gpio.PullDown, gpio.FallingEdge); err != nil {
		return 0, err
	}
	if !p.WaitForEdge(timeout) {
		return 0, fmt.Errorf("pulse on GPIO%d exceeded %v", pin, timeout)
	}
	return time.Since(start), nil
}

var (
	adcMu   sync.Mutex
	adcDev  *ads1x15.Dev
	adcPins = map[int]ads1x15.PinADC{}
)

var adcChannels = [...]ads1x15.Channel{
	ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3,
}

// adcPin returns a cached single-ended pin for the given ADS1115 channel,
// opening the I2C bus and the converter on first use.
func adcPin(channel int) (ads1x15.PinADC, error) {
	adcMu.Lock()
	defer adcMu.Unlock()
	if p, ok := adcPins[channel]; ok {
		return p, nil
	}
	if channel < 0 || channel >= len(adcChannels) {
		return nil, fmt.Errorf("no ADC channel %d", channel)
	}
	if adcDev == nil {
		bus, err := i2creg.Open("")
		if err != nil {
			return nil, fmt.Errorf("open I2C bus: %w", err)
		}
		dev, err := ads1x15.NewADS1115(bus, &ads1x15.DefaultOpts)
		if err != nil {
			return nil, fmt.Errorf("open ADS1115: %w", err)
		}
		adcDev = dev
	}
	p, err := adcDev.PinForChannel(adcChannels[channel], 3300*physic.MilliVolt, 860*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		return nil, err
	}
	adcPins[channel] = p
	return p, nil
}

// readADC samples the given ADS1115 channel and returns the raw conversion.
func readADC(channel int) (int32, error) {
	p, err := adcPin(channel)
	if err != nil {
		return 0, err
	}
	sample, err := p.Read()
	if err != nil {
		return 0, err
	}
	return sample.Raw, nil
}

// adcFullScale reports the raw count corresponding to a 3.3V input.  The
// driver selects the 4.096V range for a 3.3V max, so full scale lands short
// of the converter's 32767 limit.  The microphone's bias sits at half this.
func adcFullScale() int32 {
	return 26400
}
