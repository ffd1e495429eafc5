// Package kpi computes trend and achievement metrics for tile and kpi blocks.
package kpi

import (
	"fmt"
	"math"
)

// Trend directions.
const (
	DirectionUp      = "up"
	DirectionDown    = "down"
	DirectionNeutral = "neutral"
)

var suffixes = []string{"", "K", "M", "G", "T", "P"}

// Metrics is the outcome of Compute.
type Metrics struct {
	Value           float64
	Previous        float64
	Target          float64
	Trend           float64
	TrendDirection  string
	Achievement     float64
	FormattedValue  string
	FormattedTarget string
}

// Compute derives trend (percent change against previous) and achievement
// (percent of target). Zero denominators yield 0.
func Compute(current, previous, target float64) Metrics {
	m := Metrics{
		Value:          current,
		Previous:       previous,
		Target:         target,
		TrendDirection: DirectionNeutral,
	}
	if previous != 0 {
		trend := (current - previous) / math.Abs(previous) * 100
		switch {
		case trend > 0:
			m.TrendDirection = DirectionUp
		case trend < 0:
			m.TrendDirection = DirectionDown
		}
		m.Trend = Round2(trend)
	}
	if target != 0 {
		m.Achievement = Round2(current / target * 100)
	}
	m.FormattedValue = FormatNumber(current)
	m.FormattedTarget = FormatNumber(target)
	return m
}

// FormatNumber renders n with a K/M/G/T/P suffix. Unsuffixed values are
// truncated to an integer, suffixed ones keep one decimal.
func FormatNumber(n float64) string {
	if n == 0 {
		return "0"
	}
	abs := math.Abs(n)
	magnitude := 0
	for abs >= 1000 && magnitude < len(suffixes)-1 {
		magnitude++
		abs /= 1000
	}
	sign := ""
	if n < 0 {
		sign = "-"
	}
	if magnitude == 0 {
		return fmt.Sprintf("%s%d", sign, int64(abs))
	}
	return fmt.Sprintf("%s%.1f%s", sign, abs, suffixes[magnitude])
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
