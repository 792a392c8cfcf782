// Package location defines the monitored Location entity, provider readings
// and the pure rules that derive a Location's sensor state from them.
package location

import (
	"slices"
	"strings"

	"github.com/tphakala/cyanwatch/internal/errors"
	"github.com/tphakala/cyanwatch/internal/geo"
)

// DataType selects which upstream data series a location is synced with.
type DataType string

const (
	Weekly DataType = "weekly"
	Daily  DataType = "daily"
)

// ParseDataType accepts "weekly" or "daily" in any case.
func ParseDataType(s string) (DataType, error) {
	switch DataType(strings.ToLower(strings.TrimSpace(s))) {
	case Weekly:
		return Weekly, nil
	case Daily:
		return Daily, nil
	default:
		return "", errors.Newf("unknown data type %q", s).
			Component("location").
			Category(errors.CategoryValidation).
			Build()
	}
}

func (t DataType) String() string { return string(t) }

// Frequency is the provider query value for the series.
func (t DataType) Frequency() string { return string(t) }

// ChangeDateNA marks a location with no previous reading.
const ChangeDateNA = "N/A"

// placeholderMarker in a name means the user has not named the location yet.
const placeholderMarker = "Update"

// Key identifies a live location. IDs are only unique within one data type.
type Key struct {
	ID   int
	Type DataType
}

// Location is one monitored point.
type Location struct {
	ID        int      `json:"id"`
	Type      DataType `json:"type"`
	Owner     string   `json:"owner,omitempty"`
	Name      string   `json:"name"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	LatDMS    geo.DMS  `json:"-"`
	LonDMS    geo.DMS  `json:"-"`

	CellConcentration    int     `json:"cellConcentration"`
	MaxCellConcentration float64 `json:"maxCellConcentration"`
	ConcentrationChange  *int    `json:"concentrationChange,omitempty"`
	DataDate             string  `json:"dataDate"`
	ChangeDate           string  `json:"changeDate"`
	Source               string  `json:"source"`
	SourceFrequency      string  `json:"sourceFrequency"`
	ValidCellCount       int     `json:"validCellCount"`

	Notes   []string `json:"notes"`
	Marked  bool     `json:"marked"`
	Compare bool     `json:"compare"`
}

// Key returns the (id, type) identity used to match async results.
func (l *Location) Key() Key {
	return Key{ID: l.ID, Type: l.Type}
}

// SetPosition sets decimal coordinates and keeps the DMS form in sync.
func (l *Location) SetPosition(lat, lon float64) {
	l.Latitude = lat
	l.Longitude = lon
	l.LatDMS, l.LonDMS = geo.ToDMS(lat, lon)
}

// IsPlaceholderName reports whether the name may be replaced by the provider's.
func (l *Location) IsPlaceholderName() bool {
	return strings.Contains(l.Name, placeholderMarker)
}

// Clone returns a deep copy.
func (l *Location) Clone() Location {
	c := *l
	c.Notes = slices.Clone(l.Notes)
	if l.ConcentrationChange != nil {
		v := *l.ConcentrationChange
		c.ConcentrationChange = &v
	}
	return c
}

// ClearSensorState resets all provider-derived fields.
func (l *Location) ClearSensorState() {
	l.CellConcentration = 0
	l.MaxCellConcentration = 0
	l.ConcentrationChange = nil
	l.DataDate = ""
	l.ChangeDate = ""
	l.Source = ""
	l.SourceFrequency = ""
	l.ValidCellCount = 0
}
