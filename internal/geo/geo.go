// Package geo converts coordinates between decimal degrees and
// degree/minute/second form and validates positions.
package geo

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"

	"github.com/tphakala/cyanwatch/internal/errors"
)

// Hemisphere markers carried by DMS.Dir
const (
	North = "N"
	South = "S"
	East  = "E"
	West  = "W"
)

// DMS is one axis in degree/minute/second form. Magnitudes are never
// negative; the sign lives in Dir.
type DMS struct {
	Deg int    `json:"deg"`
	Min int    `json:"min"`
	Sec int    `json:"sec"`
	Dir string `json:"dir"`
}

// String renders the coordinate as 41°52'3"N.
func (d DMS) String() string {
	return fmt.Sprintf("%d°%d'%d\"%s", d.Deg, d.Min, d.Sec, d.Dir)
}

// ToDMS converts decimal latitude and longitude to DMS.
func ToDMS(lat, lon float64) (latDMS, lonDMS DMS) {
	latDMS = axisToDMS(lat, North, South)
	lonDMS = axisToDMS(lon, East, West)
	return latDMS, lonDMS
}

func axisToDMS(v float64, pos, neg string) DMS {
	dir := pos
	if v < 0 {
		dir = neg
	}

	abs := math.Abs(v)
	deg := math.Trunc(abs)
	minutes := (abs - deg) * 60
	mins := math.Trunc(minutes)
	secs := math.Round((minutes - mins) * 60)

	d := DMS{Deg: int(deg), Min: int(mins), Sec: int(secs), Dir: dir}

	// rounding can produce 60 seconds; carry into minutes and degrees
	if d.Sec >= 60 {
		d.Sec -= 60
		d.Min++
	}
	if d.Min >= 60 {
		d.Min -= 60
		d.Deg++
	}
	return d
}

// ToDecimal converts DMS latitude and longitude to decimal degrees.
// Negative magnitudes or a hemisphere character that doesn't belong to the
// axis are rejected.
func ToDecimal(lat, lon DMS) (latDec, lonDec float64, err error) {
	latDec, err = axisToDecimal(lat, North, South, "latitude")
	if err != nil {
		return 0, 0, err
	}
	lonDec, err = axisToDecimal(lon, East, West, "longitude")
	if err != nil {
		return 0, 0, err
	}
	return latDec, lonDec, nil
}

func axisToDecimal(d DMS, pos, neg, axis string) (float64, error) {
	if d.Deg < 0 || d.Min < 0 || d.Sec < 0 {
		return 0, errors.Newf("%s %s has a negative component", axis, d).
			Component("geo").
			Category(errors.CategoryValidation).
			Build()
	}

	v := float64(d.Deg) + float64(d.Min)/60 + float64(d.Sec)/3600
	switch d.Dir {
	case pos:
		return v, nil
	case neg:
		return -v, nil
	default:
		return 0, errors.Newf("%s hemisphere must be %s or %s, got %q", axis, pos, neg, d.Dir).
			Component("geo").
			Category(errors.CategoryValidation).
			Build()
	}
}

// Validate reports whether lat/lon is a valid position on the sphere.
func Validate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || !s2.LatLngFromDegrees(lat, lon).IsValid() {
		return errors.Newf("invalid coordinate %g, %g", lat, lon).
			Component("geo").
			Category(errors.CategoryValidation).
			Context("latitude", lat).
			Context("longitude", lon).
			Build()
	}
	return nil
}
