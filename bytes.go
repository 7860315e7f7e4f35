package sagitta

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

type Bytes int64

var unitTable = map[string]int64{
	"b":   1,
	"k":   1 << 10,
	"kb":  1 << 10,
	"kib": 1 << 10,
	"m":   1 << 20,
	"mb":  1 << 20,
	"mib": 1 << 20,
	"g":   1 << 30,
	"gb":  1 << 30,
	"gib": 1 << 30,
	"t":   1 << 40,
	"tb":  1 << 40,
	"tib": 1 << 40,
}

// ParseBytes will parse a string into bytes. It assumes any units are in IEC
// (i.e. powers of 2), and accepts the single letter K/M/G/T suffixes Grid
// Engine uses for memory limits.
func ParseBytes(in string) (Bytes, error) {
	s := strings.TrimSpace(in)
	rest := strings.TrimLeftFunc(s, unicode.IsDigit)
	value, err := strconv.ParseInt(s[:len(s)-len(rest)], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse string %s: %w", in, err)
	}
	unit := strings.ToLower(strings.TrimSpace(rest))
	if unit == "" {
		unit = "b"
	}
	mult, found := unitTable[unit]
	if !found {
		return 0, fmt.Errorf("failed to parse bytes string %s: unknown unit %v", in, unit)
	}
	if value > math.MaxInt64/mult {
		return 0, fmt.Errorf("failed to parse bytes string %s: does not fit in int64", in)
	}
	return Bytes(value * mult), nil
}

// BytesFromFloat converts an accounting column measured in bytes. Values
// beyond the int64 range saturate.
func BytesFromFloat(v float64) Bytes {
	if v >= math.MaxInt64 {
		return Bytes(math.MaxInt64)
	}
	if v <= 0 {
		return 0
	}
	return Bytes(v)
}

// BytesFromKiB converts an rusage column reported in kilobytes (ru_maxrss).
func BytesFromKiB(v float64) Bytes {
	return BytesFromFloat(v * 1024)
}

var byteUnits = []string{"KiB", "MiB", "GiB", "TiB"}

func (b Bytes) String() string {
	if b < 1<<10 {
		return fmt.Sprintf("%d B", b)
	}
	v := float64(b) / 1024
	unit := 0
	for v >= 1024 && unit < len(byteUnits)-1 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", v, byteUnits[unit])
}
