package command

import (
	"bytes"
	"strconv"
)

// Adjustment steps for the up/down commands.
const (
	BrightnessStep  = 0.1
	TemperatureStep = 500
)

// Kind identifies a parsed command.
type Kind int

const (
	// KindNone is an unrecognized or malformed line; it is silently ignored.
	KindNone Kind = iota
	KindBrightnessSet
	KindBrightnessStep
	KindBrightnessReset
	KindTemperatureSet
	KindTemperatureStep
	KindTemperatureReset
	KindEnable
	KindDisable
	KindToggle
	KindShutdown
)

// Command is one parsed control line. Value is set for KindBrightnessSet and
// KindBrightnessStep, Kelvin for KindTemperatureSet and KindTemperatureStep.
type Command struct {
	Kind   Kind
	Value  float64
	Kelvin int
}

// Parse interprets one line of the control protocol. Keywords match by
// case-sensitive prefix; the argument may be preceded by spaces or tabs.
// Anything unrecognized parses to KindNone.
func Parse(line []byte) Command {
	if rest, ok := keyword(line, "brightness"); ok {
		rest = skipBlank(rest)
		if len(rest) == 0 {
			return Command{}
		}
		if rest[0] == '.' || isDigit(rest[0]) {
			v, ok := leadingFloat(rest)
			if !ok {
				return Command{}
			}
			return Command{Kind: KindBrightnessSet, Value: v}
		}
		switch {
		case bytes.HasPrefix(rest, []byte("up")):
			return Command{Kind: KindBrightnessStep, Value: BrightnessStep}
		case bytes.HasPrefix(rest, []byte("down")):
			return Command{Kind: KindBrightnessStep, Value: -BrightnessStep}
		case bytes.HasPrefix(rest, []byte("reset")):
			return Command{Kind: KindBrightnessReset}
		}
		return Command{}
	}
	if _, ok := keyword(line, "enable"); ok {
		return Command{Kind: KindEnable}
	}
	if _, ok := keyword(line, "disable"); ok {
		return Command{Kind: KindDisable}
	}
	if _, ok := keyword(line, "toggle"); ok {
		return Command{Kind: KindToggle}
	}
	if rest, ok := keyword(line, "temp"); ok {
		rest = skipBlank(rest)
		if len(rest) == 0 {
			return Command{}
		}
		if isDigit(rest[0]) {
			v, ok := leadingInt(rest)
			if !ok {
				return Command{}
			}
			return Command{Kind: KindTemperatureSet, Kelvin: v}
		}
		switch {
		case bytes.HasPrefix(rest, []byte("up")):
			return Command{Kind: KindTemperatureStep, Kelvin: TemperatureStep}
		case bytes.HasPrefix(rest, []byte("down")):
			return Command{Kind: KindTemperatureStep, Kelvin: -TemperatureStep}
		case bytes.HasPrefix(rest, []byte("reset")):
			return Command{Kind: KindTemperatureReset}
		}
		return Command{}
	}
	if _, ok := keyword(line, "shutdown"); ok {
		return Command{Kind: KindShutdown}
	}
	return Command{}
}

func keyword(line []byte, kw string) (rest []byte, ok bool) {
	if !bytes.HasPrefix(line, []byte(kw)) {
		return nil, false
	}
	return line[len(kw):], true
}

func skipBlank(b []byte) []byte {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	return b[i:]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// leadingFloat parses the longest numeric prefix of b as a float, the way
// strtof would, ignoring any trailing garbage.
func leadingFloat(b []byte) (float64, bool) {
	end := 0
	dot := false
	for end < len(b) {
		c := b[end]
		if c == '.' && !dot {
			dot = true
		} else if !isDigit(c) {
			break
		}
		end++
	}
	v, err := strconv.ParseFloat(string(b[:end]), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// leadingInt parses the longest decimal prefix of b as an int.
func leadingInt(b []byte) (int, bool) {
	end := 0
	for end < len(b) && isDigit(b[end]) {
		end++
	}
	v, err := strconv.Atoi(string(b[:end]))
	if err != nil {
		return 0, false
	}
	return v, true
}
