package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseDelay reads a pause bound. A bare number is seconds ("2", "1.5"); a
// suffixed value is a Go duration ("750ms", "2s").
func ParseDelay(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty delay")
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return secondsToDuration(secs)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid delay %q: want seconds or a duration like 1500ms", s)
	}
	return d, nil
}

func secondsToDuration(secs float64) (time.Duration, error) {
	if math.IsNaN(secs) || math.IsInf(secs, 0) || math.Abs(secs) > math.MaxInt64/float64(time.Second) {
		return 0, fmt.Errorf("delay %v seconds out of range", secs)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// delayFromValue converts what viper holds for a delay key: a time.Duration
// from defaults, a number from a config file, or a string from a flag or the
// environment. Numbers are seconds.
func delayFromValue(key string, raw any) (time.Duration, error) {
	var (
		d   time.Duration
		err error
	)
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		d = v
	case int:
		d, err = secondsToDuration(float64(v))
	case int64:
		d, err = secondsToDuration(float64(v))
	case uint64:
		d, err = secondsToDuration(float64(v))
	case float64:
		d, err = secondsToDuration(v)
	case string:
		d, err = ParseDelay(v)
	case fmt.Stringer:
		d, err = ParseDelay(v.String())
	default:
		err = fmt.Errorf("unsupported type %T", raw)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// DelayValue is a pflag.Value for pause bounds that takes bare seconds as
// well as durations.
type DelayValue time.Duration

// Set implements pflag.Value.
func (d *DelayValue) Set(s string) error {
	v, err := ParseDelay(s)
	if err != nil {
		return err
	}
	*d = DelayValue(v)
	return nil
}

// String implements pflag.Value.
func (d *DelayValue) String() string {
	return time.Duration(*d).String()
}

// Type implements pflag.Value.
func (d *DelayValue) Type() string {
	return "delay"
}
