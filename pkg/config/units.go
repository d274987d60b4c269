package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Calendar units accepted on top of time.ParseDuration's.
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// Duration is a time.Duration that reads "5s", "1d12h" or "2w" from YAML
// and writes back Go's canonical form.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

var (
	durationToken = regexp.MustCompile(`([0-9]*\.?[0-9]+)(ns|us|µs|ms|s|m|h|d|w)`)
	durationUnits = map[string]time.Duration{
		"ns": time.Nanosecond,
		"us": time.Microsecond,
		"µs": time.Microsecond,
		"ms": time.Millisecond,
		"s":  time.Second,
		"m":  time.Minute,
		"h":  time.Hour,
		"d":  Day,
		"w":  Week,
	}
)

// ParseDuration parses a signed duration built from number+unit tokens.
// Empty input is zero.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	if !strings.ContainsAny(s, "dw") {
		return time.ParseDuration(s)
	}

	sign := time.Duration(1)
	body := s
	switch {
	case strings.HasPrefix(body, "-"):
		sign, body = -1, body[1:]
	case strings.HasPrefix(body, "+"):
		body = body[1:]
	}

	var total time.Duration
	consumed := 0
	for _, loc := range durationToken.FindAllStringSubmatchIndex(body, -1) {
		if loc[0] != consumed {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		consumed = loc[1]

		val, err := strconv.ParseFloat(body[loc[2]:loc[3]], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		total += time.Duration(val * float64(durationUnits[body[loc[4]:loc[5]]]))
	}
	if consumed == 0 || consumed != len(body) {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return sign * total, nil
}

// Distance is a length in meters. YAML accepts a bare number or a value
// with an m, km or ft suffix.
type Distance float64

func (d *Distance) UnmarshalYAML(value *yaml.Node) error {
	var f float64
	if err := value.Decode(&f); err == nil {
		*d = Distance(f)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	m, err := ParseDistance(s)
	if err != nil {
		return err
	}
	*d = Distance(m)
	return nil
}

func (d Distance) MarshalYAML() (any, error) {
	return strconv.FormatFloat(float64(d), 'f', -1, 64) + "m", nil
}

var distanceUnits = []struct {
	suffix string
	meters float64
}{
	{"km", 1000},
	{"ft", 0.3048},
	{"m", 1},
}

// ParseDistance converts "120", "120m", "0.4km" or "400ft" to meters.
func ParseDistance(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	mult := 1.0
	num := s
	for _, u := range distanceUnits {
		if strings.HasSuffix(s, u.suffix) {
			mult = u.meters
			num = strings.TrimSuffix(s, u.suffix)
			break
		}
	}

	val, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid distance %q: %w", s, err)
	}
	return val * mult, nil
}
