package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reading(date string, conc float64) DataPoint {
	return DataPoint{
		ImageDate:               date,
		CellConcentration:       conc,
		MaxCellConcentration:    conc * 2,
		ValidCellCount:          10,
		SatelliteImageType:      "OLCI",
		SatelliteImageFrequency: "Weekly",
	}
}

func TestCreateEnrichedWithPreviousReading(t *testing.T) {
	orig := Location{ID: 1, Type: Weekly, Name: "Lake A", Notes: []string{"n"}}
	resp := &Response{Outputs: []DataPoint{reading("2024-06-08", 1500.6), reading("2024-06-01", 1000.2)}}

	got := CreateEnriched(orig, "alice", resp, nil)

	assert.Equal(t, 1501, got.CellConcentration)
	require.NotNil(t, got.ConcentrationChange)
	assert.Equal(t, 500, *got.ConcentrationChange)
	assert.Equal(t, "2024-06-01", got.ChangeDate)
	assert.Equal(t, "2024-06-08", got.DataDate)
	assert.Equal(t, "OLCI", got.Source)
	assert.Equal(t, "Weekly", got.SourceFrequency)
	assert.Equal(t, 10, got.ValidCellCount)
	assert.Equal(t, "alice", got.Owner)
	assert.Equal(t, []string{"n"}, got.Notes)
}

func TestCreateEnrichedNegativeChangeRounds(t *testing.T) {
	resp := &Response{Outputs: []DataPoint{reading("d2", 100.4), reading("d1", 200.0)}}
	got := CreateEnriched(Location{}, "", resp, nil)
	require.NotNil(t, got.ConcentrationChange)
	assert.Equal(t, -100, *got.ConcentrationChange)
}

func TestCreateEnrichedSingleReading(t *testing.T) {
	change := 7
	orig := Location{ID: 1, ConcentrationChange: &change, ChangeDate: "old"}
	resp := &Response{Outputs: []DataPoint{reading("2024-06-08", 10)}}

	got := CreateEnriched(orig, "", resp, nil)

	assert.Nil(t, got.ConcentrationChange)
	assert.Equal(t, ChangeDateNA, got.ChangeDate)
	assert.NotNil(t, orig.ConcentrationChange, "original must not be mutated")
}

func TestCreateEnrichedNoReadingsClearsState(t *testing.T) {
	change := 3
	orig := Location{
		ID: 1, CellConcentration: 99, MaxCellConcentration: 100, ConcentrationChange: &change,
		DataDate: "d", ChangeDate: "c", Source: "OLCI", SourceFrequency: "Weekly", ValidCellCount: 5,
	}

	got := CreateEnriched(orig, "", &Response{}, nil)

	assert.Zero(t, got.CellConcentration)
	assert.Zero(t, got.MaxCellConcentration)
	assert.Nil(t, got.ConcentrationChange)
	assert.Empty(t, got.DataDate)
	assert.Empty(t, got.ChangeDate)
	assert.Empty(t, got.Source)
	assert.Empty(t, got.SourceFrequency)
	assert.Zero(t, got.ValidCellCount)
}

func TestCreateEnrichedNaming(t *testing.T) {
	resp := &Response{MetaInfo: MetaInfo{LocationName: "Lake X"}}

	t.Run("placeholder is replaced", func(t *testing.T) {
		got := CreateEnriched(Location{Name: "Update name"}, "", resp, []string{"Lake X -- 2"})
		assert.Equal(t, "Lake X -- 3", got.Name)
	})

	t.Run("user name is kept", func(t *testing.T) {
		got := CreateEnriched(Location{Name: "My lake"}, "", resp, nil)
		assert.Equal(t, "My lake", got.Name)
	})

	t.Run("empty suggestion is ignored", func(t *testing.T) {
		got := CreateEnriched(Location{Name: "Update"}, "", &Response{}, nil)
		assert.Equal(t, "Update", got.Name)
	})
}

func TestDisambiguate(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		existing  []string
		want      string
	}{
		{"empty collection", "Lake X", nil, "Lake X -- 1"},
		{"takes max suffix", "Lake X", []string{"Lake X -- 1", "Lake X -- 3"}, "Lake X -- 4"},
		{"bare name present", "Lake X", []string{"Lake X"}, "Lake X -- 1"},
		{"unrelated names", "Lake X", []string{"Pond -- 9"}, "Lake X -- 1"},
		{"substring over-match", "Lake", []string{"Lakeside -- 4"}, "Lake -- 5"},
		{"non-numeric suffix", "Lake X", []string{"Lake X -- north"}, "Lake X -- 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Disambiguate(tt.candidate, tt.existing))
		})
	}
}
