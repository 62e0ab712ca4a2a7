/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"gopkg.in/yaml.v3"
)

// ByteSize is a size in bytes written either as an integer or as a human-readable string ("250M", "1Gi").
// Log rotation limits use it.
type ByteSize uint64

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	bs, err := parseByteSizeFromString(string(text))
	if err != nil {
		return err
	}
	*b = bs
	return nil
}

// String formats the size with the largest fitting unit, e.g. "250M".
func (b ByteSize) String() string {
	return bytefmt.ByteSize(uint64(b))
}

// k8sByteSuffixes are power-of-two suffixes ("Mi", "Gi") which mean the same as bytefmt ones without "i".
var k8sByteSuffixes = [...]string{"Ki", "Mi", "Gi", "Ti", "Pi", "Ei"}

func parseByteSizeFromString(s string) (ByteSize, error) {
	v := strings.TrimSpace(s)
	if num, err := strconv.ParseUint(v, 10, 64); err == nil {
		return ByteSize(num), nil
	}
	for _, suffix := range k8sByteSuffixes {
		if strings.HasSuffix(v, suffix) {
			v = strings.TrimSuffix(v, "i")
			break
		}
	}
	num, err := bytefmt.ToBytes(v)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(num), nil
}

// TimeDuration is a non-negative duration written either as a Go duration string ("1h30m")
// or as an integer number of nanoseconds. Most durations in configuration sections use it.
type TimeDuration time.Duration

func parseTimeDuration(s string) (TimeDuration, error) {
	if num, err := strconv.ParseInt(s, 10, 64); err == nil {
		if num < 0 {
			return 0, fmt.Errorf("negative duration %d", num)
		}
		return TimeDuration(num), nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return TimeDuration(dur), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *TimeDuration) UnmarshalText(text []byte) error {
	dur, err := parseTimeDuration(string(text))
	if err != nil {
		return err
	}
	*d = dur
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *TimeDuration) UnmarshalJSON(data []byte) error {
	return d.UnmarshalText([]byte(strings.Trim(string(data), `"`)))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	return d.UnmarshalText([]byte(value.Value))
}

// MarshalJSON writes the duration as a string ("5m0s").
func (d TimeDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// String implements fmt.Stringer.
func (d TimeDuration) String() string {
	return time.Duration(d).String()
}
