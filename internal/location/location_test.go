package location

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/cyanwatch/internal/geo"
)

func TestParseDataType(t *testing.T) {
	dt, err := ParseDataType(" Daily ")
	require.NoError(t, err)
	assert.Equal(t, Daily, dt)

	dt, err = ParseDataType("weekly")
	require.NoError(t, err)
	assert.Equal(t, "weekly", dt.Frequency())

	_, err = ParseDataType("monthly")
	require.Error(t, err)
}

func TestSetPositionKeepsDMSInSync(t *testing.T) {
	var l Location
	l.SetPosition(-33.8568, 151.2153)

	assert.InDelta(t, -33.8568, l.Latitude, 0)
	assert.Equal(t, geo.DMS{Deg: 33, Min: 51, Sec: 24, Dir: geo.South}, l.LatDMS)
	assert.Equal(t, geo.East, l.LonDMS.Dir)
}

func TestPlaceholderName(t *testing.T) {
	l := Location{Name: "Update me"}
	assert.True(t, l.IsPlaceholderName())
	l.Name = "Lake Erie"
	assert.False(t, l.IsPlaceholderName())
}

func TestCloneIsDeep(t *testing.T) {
	change := 5
	orig := Location{ID: 1, Notes: []string{"a"}, ConcentrationChange: &change}

	c := orig.Clone()
	c.Notes[0] = "b"
	*c.ConcentrationChange = 9

	assert.Equal(t, "a", orig.Notes[0])
	assert.Equal(t, 5, *orig.ConcentrationChange)
}

func TestKeyIncludesType(t *testing.T) {
	a := Location{ID: 3, Type: Weekly}
	b := Location{ID: 3, Type: Daily}
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestResponseDecoding(t *testing.T) {
	body := `{
		"metaInfo": {"locationName": "Lake Okeechobee", "latitude": 26.9, "longitude": -80.8},
		"outputs": [
			{"imageDate": "2024-06-08", "cellConcentration": 120034.6, "maxCellConcentration": 210000,
			 "validCellsCount": 42, "satelliteImageType": "OLCI", "satelliteImageFrequency": "Weekly"}
		]
	}`

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, "Lake Okeechobee", resp.MetaInfo.LocationName)
	require.Len(t, resp.Outputs, 1)
	assert.Equal(t, 42, resp.Outputs[0].ValidCellCount)
}
