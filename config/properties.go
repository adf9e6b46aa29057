package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chris-numeus/aeron/errors"
)

// Property looks up a property value in the environment variable form of
// the name, returning defaultValue when it is unset. "aeron.dir" maps to
// AERON_DIR.
func Property(name, defaultValue string) string {
	envName := strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
	if v, ok := os.LookupEnv(envName); ok {
		return v
	}
	return defaultValue
}

// SizeProperty reads a property and parses it as a size.
func SizeProperty(name string, defaultValue int64) (int64, error) {
	v := Property(name, "")
	if v == "" {
		return defaultValue, nil
	}
	return ParseSize(name, v)
}

// DurationProperty reads a property and parses it as a duration.
func DurationProperty(name string, defaultValue time.Duration) (time.Duration, error) {
	v := Property(name, "")
	if v == "" {
		return defaultValue, nil
	}
	return ParseDuration(name, v)
}

// IntProperty reads a property and parses it as an integer.
func IntProperty(name string, defaultValue int) (int, error) {
	v := Property(name, "")
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.WrapInvalid(
			fmt.Errorf("property %s value %q is not an integer", name, v),
			"config", "IntProperty", "parse")
	}
	return n, nil
}

// ParseSize parses a byte count with an optional k, m or g suffix. Suffixes
// are powers of 1024 and case insensitive.
func ParseSize(name, value string) (int64, error) {
	if value == "" {
		return 0, sizeErr(name, value)
	}

	multiplier := int64(1)
	last := value[len(value)-1]
	switch last {
	case 'k', 'K':
		multiplier = 1024
	case 'm', 'M':
		multiplier = 1024 * 1024
	case 'g', 'G':
		multiplier = 1024 * 1024 * 1024
	}
	digits := value
	if multiplier != 1 {
		digits = value[:len(value)-1]
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return 0, sizeErr(name, value)
	}
	if n > (1<<63-1)/multiplier {
		return 0, errors.WrapInvalid(
			fmt.Errorf("property %s value %q overflows", name, value),
			"config", "ParseSize", "range check")
	}
	return n * multiplier, nil
}

func sizeErr(name, value string) error {
	return errors.WrapInvalid(
		fmt.Errorf("property %s value %q is not a size", name, value),
		"config", "ParseSize", "parse")
}

// ParseDuration parses a nanosecond count with an optional ns, us, ms or s
// suffix, case insensitive. A bare number is nanoseconds.
func ParseDuration(name, value string) (time.Duration, error) {
	lower := strings.ToLower(value)
	multiplier := time.Nanosecond
	digits := lower

	switch {
	case strings.HasSuffix(lower, "ns"):
		digits = lower[:len(lower)-2]
	case strings.HasSuffix(lower, "us"):
		multiplier = time.Microsecond
		digits = lower[:len(lower)-2]
	case strings.HasSuffix(lower, "ms"):
		multiplier = time.Millisecond
		digits = lower[:len(lower)-2]
	case strings.HasSuffix(lower, "s"):
		multiplier = time.Second
		digits = lower[:len(lower)-1]
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return 0, errors.WrapInvalid(
			fmt.Errorf("property %s value %q is not a duration", name, value),
			"config", "ParseDuration", "parse")
	}
	return time.Duration(n) * multiplier, nil
}
