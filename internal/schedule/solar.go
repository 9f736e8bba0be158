package schedule

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
)

// Elevation returns the angular elevation of the sun above the horizon in
// degrees at the given time and position.
func Elevation(t time.Time, lat, lon float64) float64 {
	pos := suncalc.GetPosition(t, lat, lon)
	return pos.Altitude * (180.0 / math.Pi)
}

// SecondsSinceMidnight converts a wall-clock time to the offset used by
// time-based schemes.
func SecondsSinceMidnight(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}
