package main

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

func TestPulseToCentimeters(t *testing.T) {
	cases := []struct {
		flight time.Duration
		want   float64
	}{
		{583 * time.Microsecond, 9.99845},
		{1166 * time.Microsecond, 19.9969},
		{0, 0},
	}
	for _, tc := range cases {
		got := pulseToCentimeters(tc.flight)
		if math.Abs(got-tc.want) > 0.001 {
			t.Errorf("pulseToCentimeters(%v) = %v, want %v", tc.flight, got, tc.want)
		}
	}
}

func TestUltrasonicRead(t *testing.T) {
	var ops []string
	u := &UltrasonicSensor{
		TrigPin: 24,
		EchoPin: 23,
		set: func(pin int, high bool) {
			if pin != 24 {
				t.Errorf("wrote pin %d, want trigger pin 24", pin)
			}
			ops = append(ops, fmt.Sprintf("trig=%v", high))
		},
		arm: func(pin int) error {
			if pin != 23 {
				t.Errorf("armed pin %d, want echo pin 23", pin)
			}
			ops = append(ops, "arm")
			return nil
		},
		pulseIn: func(pin int, timeout time.Duration) (time.Duration, error) {
			if pin != 23 {
				t.Errorf("pulse on pin %d, want echo pin 23", pin)
			}
			if timeout != echoTimeout {
				t.Errorf("timeout %v, want %v", timeout, echoTimeout)
			}
			ops = append(ops, "pulse")
			return 583 * time.Microsecond, nil
		},
		sleep: func(time.Duration) {},
	}
	r, err := u.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if r.Kind != SensorKindUltrasonic {
		t.Errorf("kind = %v, want ultrasonic", r.Kind)
	}
	if math.Abs(r.DistanceCM-9.99845) > 0.001 {
		t.Errorf("distance = %v, want ~10cm", r.DistanceCM)
	}
	// The echo pin must be watching before the trigger fires, or a close
	// target's echo can start before the pin is listening.
	want := []string{"arm", "trig=false", "trig=true", "trig=false", "pulse"}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("ops = %v, want %v", ops, want)
		}
	}
}

func TestUltrasonicTimeout(t *testing.T) {
	u := &UltrasonicSensor{
		set: func(int, bool) {},
		arm: func(int) error { return nil },
		pulseIn: func(int, time.Duration) (time.Duration, error) {
			return 0, errors.New("no edge")
		},
		sleep: func(time.Duration) {},
	}
	r, err := u.Read()
	if err == nil {
		t.Fatal("Read succeeded, want error on echo timeout")
	}
	if !math.IsNaN(r.DistanceCM) {
		t.Errorf("distance = %v, want NaN", r.DistanceCM)
	}
}

func TestUltrasonicArmFailure(t *testing.T) {
	triggered := false
	u := &UltrasonicSensor{
		set: func(int, bool) { triggered = true },
		arm: func(int) error { return errors.New("pin busy") },
		pulseIn: func(int, time.Duration) (time.Duration, error) {
			t.Fatal("pulseIn called after arm failure")
			return 0, nil
		},
		sleep: func(time.Duration) {},
	}
	r, err := u.Read()
	if err == nil {
		t.Fatal("Read succeeded, want arm error")
	}
	if triggered {
		t.Error("trigger fired despite arm failure")
	}
	if !math.IsNaN(r.DistanceCM) {
		t.Errorf("distance = %v, want NaN", r.DistanceCM)
	}
}

func newTestSoundSensor(read func(int) (int32, error)) *SoundSensor {
	return &SoundSensor{
		Channel:  0,
		samples:  8,
		interval: 0,
		midscale: 512,
		read:     read,
		sleep:    func(time.Duration) {},
	}
}

func TestSoundSensorQuiet(t *testing.T) {
	s := newTestSoundSensor(func(int) (int32, error) { return 512, nil })
	r, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	// level clamps to 1, log10(1) == 0
	if r.SoundDB != 0 {
		t.Errorf("quiet room = %v dB, want 0", r.SoundDB)
	}
}

func TestSoundSensorLevel(t *testing.T) {
	// Constant 100 counts above bias: 20*log10(100) = 40 dB.
	s := newTestSoundSensor(func(int) (int32, error) { return 612, nil })
	r, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if math.Abs(r.SoundDB-40.0) > 0.001 {
		t.Errorf("level = %v dB, want 40", r.SoundDB)
	}
	if r.Kind != SensorKindSound {
		t.Errorf("kind = %v, want sound", r.Kind)
	}
}

func TestSoundSensorADCError(t *testing.T) {
	s := newTestSoundSensor(func(int) (int32, error) { return 0, errors.New("i2c gone") })
	if _, err := s.Read(); err == nil {
		t.Fatal("Read succeeded, want ADC error")
	}
}
