package evolution

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// Operator transforms gene content. A failing operator leaves the content unchanged.
type Operator func(content string, rng *rand.Rand) (string, error)

// DefaultPatternLibrary holds parameter lines known to be reasonable starting points.
var DefaultPatternLibrary = []string{
	"position_size=0.02",
	"position_size=0.05",
	"slippage=0.003",
	"threshold=0.015",
	"lookback=12",
	"harvest_interval=3",
}

// PointMutation rescales numeric values on max(1, lines*rate) random lines by a
// factor in [1-rate, 1+rate]. Non-numeric and malformed lines are left alone.
func PointMutation(rate float64) Operator {
	return func(content string, rng *rand.Rand) (string, error) {
		lines := splitLines(content)
		if len(lines) == 0 {
			return content, fmt.Errorf("point mutation: empty content")
		}
		n := int(math.Max(1, float64(int(float64(len(lines))*rate))))
		for i := 0; i < n; i++ {
			idx := rng.Intn(len(lines))
			key, value, ok := parseLine(lines[idx])
			if !ok {
				continue
			}
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				continue
			}
			f *= 1 + rate*(2*rng.Float64()-1)
			lines[idx] = key + "=" + strconv.FormatFloat(f, 'g', 6, 64)
		}
		return joinLines(lines), nil
	}
}

// Insertion inserts a random pattern-library line at a random position.
func Insertion(library []string) Operator {
	return func(content string, rng *rand.Rand) (string, error) {
		if len(library) == 0 {
			return content, nil
		}
		lines := splitLines(content)
		at := rng.Intn(len(lines) + 1)
		pattern := library[rng.Intn(len(library))]
		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:at]...)
		out = append(out, pattern)
		out = append(out, lines[at:]...)
		return joinLines(out), nil
	}
}

// Deletion drops blank and comment lines. When there are none it removes one
// random line, keeping at least one.
func Deletion() Operator {
	return func(content string, rng *rand.Rand) (string, error) {
		lines := splitLines(content)
		cleaned := make([]string, 0, len(lines))
		for _, l := range lines {
			t := strings.TrimSpace(l)
			if t != "" && !strings.HasPrefix(t, "#") {
				cleaned = append(cleaned, l)
			}
		}
		if len(cleaned) != len(lines) || len(cleaned) <= 1 {
			return joinLines(cleaned), nil
		}
		idx := rng.Intn(len(cleaned))
		return joinLines(append(cleaned[:idx:idx], cleaned[idx+1:]...)), nil
	}
}

// Crossover takes the first half of the first parent's lines and the remainder
// of the second parent's lines from the same cut point.
func Crossover(content1, content2 string) string {
	lines1 := splitLines(content1)
	lines2 := splitLines(content2)
	cut := len(lines1) / 2
	out := make([]string, 0, len(lines1)+len(lines2))
	out = append(out, lines1[:cut]...)
	if cut < len(lines2) {
		out = append(out, lines2[cut:]...)
	}
	return joinLines(out)
}

// apply runs op and returns the original content on error or panic.
func apply(op Operator, content string, rng *rand.Rand) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = content
		}
	}()
	mutated, err := op(content, rng)
	if err != nil {
		return content
	}
	return mutated
}
