// Package toml adds support to marshal and unmarshal types not in the official TOML spec.
package toml

import (
	"fmt"
	"strconv"
	"time"
)

// Duration is a TOML wrapper type for time.Duration.
type Duration time.Duration

// String returns the string representation of the duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText parses a TOML value into a duration value.
func (d *Duration) UnmarshalText(text []byte) error {
	// Ignore if there is no value set.
	if len(text) == 0 {
		return nil
	}

	// Otherwise parse as a duration formatted string.
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	// Set duration and return.
	*d = Duration(duration)
	return nil
}

// MarshalText converts a duration to a string for decoding toml
func (d Duration) MarshalText() (text []byte, err error) {
	return []byte(d.String()), nil
}

// Precision is the unit of the integer timestamps stored in the cluster.
type Precision string

const (
	Nanosecond  Precision = "ns"
	Microsecond Precision = "us"
	Millisecond Precision = "ms"
	Second      Precision = "s"
)

// UnmarshalText parses a TOML value into a precision value.
func (p *Precision) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		return nil
	}
	v := Precision(text)
	if _, err := v.Unit(); err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalText converts a precision to a string for encoding toml.
func (p Precision) MarshalText() ([]byte, error) {
	return []byte(p), nil
}

// Unit returns the duration of one timestamp tick.
func (p Precision) Unit() (time.Duration, error) {
	switch p {
	case Nanosecond:
		return time.Nanosecond, nil
	case Microsecond:
		return time.Microsecond, nil
	case Millisecond, "":
		return time.Millisecond, nil
	case Second:
		return time.Second, nil
	default:
		return 0, fmt.Errorf("unknown timestamp precision: %s", strconv.Quote(string(p)))
	}
}

// Ticks converts d into a number of timestamp units of precision p.
func (p Precision) Ticks(d Duration) (int64, error) {
	unit, err := p.Unit()
	if err != nil {
		return 0, err
	}
	return int64(time.Duration(d) / unit), nil
}
