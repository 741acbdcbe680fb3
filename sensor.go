package main

import (
	"fmt"
	"math"
	"time"
)

// Sensor is implemented by every measurement source.  Read blocks for the
// duration of one measurement and fills in only the fields the sensor
// produces; the caller stamps identity and time.
type Sensor interface {
	Read() (Reading, error)
	Name() string
}

// echoTimeout bounds the wait for the HC-SR04 echo pulse.  30 ms of flight
// is roughly five metres of range, past the module's rated maximum.
const echoTimeout = 30 * time.Millisecond

// speed of sound at sea level, in cm per microsecond
const soundCmPerUs = 0.0343

// UltrasonicSensor measures distance with an HC-SR04 ranging module.
//
// Datasheet: https://cdn.sparkfun.com/datasheets/Sensors/Proximity/HCSR04.pdf
type UltrasonicSensor struct {
	TrigPin int
	EchoPin int

	set     func(pin int, high bool)
	arm     func(pin int) error
	pulseIn func(pin int, timeout time.Duration) (time.Duration, error)
	sleep   func(d time.Duration)
}

// NewUltrasonicSensor binds an HC-SR04 to its trigger and echo pins.
func NewUltrasonicSensor(trigPin, echoPin int) *UltrasonicSensor {
	return &UltrasonicSensor{
		TrigPin: trigPin,
		EchoPin: echoPin,
		set:     setPin,
		arm:     armEdge,
		pulseIn: pulseIn,
		sleep:   time.Sleep,
	}
}

func (u *UltrasonicSensor) Name() string { return "HC-SR04" }

// Read arms the echo pin, fires a 10 microsecond trigger pulse and times
// the echo.  The echo pulse width is the round-trip time of flight, so
// distance is half of it at the speed of sound.  Arming must come first:
// a close target answers within ~150µs and reconfiguring the pin after
// the trigger can swallow the echo's rising edge.  A missing echo yields
// NaN and an error.
func (u *UltrasonicSensor) Read() (Reading, error) {
	if err := u.arm(u.EchoPin); err != nil {
		return Reading{Kind: SensorKindUltrasonic, DistanceCM: math.NaN()},
			fmt.Errorf("arm echo: %w", err)
	}
	u.set(u.TrigPin, false)
	u.sleep(2 * time.Microsecond)
	u.set(u.TrigPin, true)
	u.sleep(10 * time.Microsecond)
	u.set(u.TrigPin, false)

	flight, err := u.pulseIn(u.EchoPin, echoTimeout)
	if err != nil {
		return Reading{Kind: SensorKindUltrasonic, DistanceCM: math.NaN()},
			fmt.Errorf("no echo: %w", err)
	}
	cm := pulseToCentimeters(flight)
	return Reading{Kind: SensorKindUltrasonic, DistanceCM: cm}, nil
}

// pulseToCentimeters converts an echo time of flight to a one-way distance.
func pulseToCentimeters(flight time.Duration) float64 {
	return float64(flight.Microseconds()) * soundCmPerUs / 2.0
}

// SoundSensor reads a MAX4466 electret microphone amplifier through an
// ADS1115 channel.  The amplifier biases its output at half the supply, so
// the distance of the sample mean from midscale is a crude amplitude.
type SoundSensor struct {
	Channel int

	samples  int
	interval time.Duration
	midscale float64

	read  func(channel int) (int32, error)
	sleep func(d time.Duration)
}

// NewSoundSensor binds a sound level sensor to an ADC channel.
func NewSoundSensor(channel int) *SoundSensor {
	return &SoundSensor{
		Channel:  channel,
		samples:  200,
		interval: 200 * time.Microsecond,
		midscale: float64(adcFullScale()) / 2.0,
		read:     readADC,
		sleep:    time.Sleep,
	}
}

func (s *SoundSensor) Name() string { return "MAX4466" }

// Read averages a burst of ADC samples and reports a relative "dB-like"
// level: 20*log10 of the mean's distance from midscale, clamped so a quiet
// room reads 0 rather than negative or non-finite values.
func (s *SoundSensor) Read() (Reading, error) {
	var sum int64
	for i := 0; i < s.samples; i++ {
		v, err := s.read(s.Channel)
		if err != nil {
			return Reading{Kind: SensorKindSound}, fmt.Errorf("adc read: %w", err)
		}
		sum += int64(v)
		s.sleep(s.interval)
	}
	mean := float64(sum) / float64(s.samples)
	level := math.Abs(mean - s.midscale)
	db := 20.0 * math.Log10(math.Max(level, 1.0))
	if !isFinitePositive(db) {
		db = 0.0
	}
	return Reading{Kind: SensorKindSound, SoundDB: db}, nil
}

func isFinitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
