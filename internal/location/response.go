package location

import "math"

// DataPoint is one provider reading.
type DataPoint struct {
	ImageDate               string  `json:"imageDate"`
	CellConcentration       float64 `json:"cellConcentration"`
	MaxCellConcentration    float64 `json:"maxCellConcentration"`
	ValidCellCount          int     `json:"validCellsCount"`
	SatelliteImageType      string  `json:"satelliteImageType"`
	SatelliteImageFrequency string  `json:"satelliteImageFrequency"`
}

// MetaInfo carries provider metadata, including a suggested location name.
type MetaInfo struct {
	LocationName string  `json:"locationName"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RequestDate  string  `json:"requestDateTime,omitempty"`
}

// Response is a provider reply. Outputs are ordered most recent first.
type Response struct {
	MetaInfo MetaInfo    `json:"metaInfo"`
	Outputs  []DataPoint `json:"outputs"`
}

// CreateEnriched derives a location's new state from a provider response.
// outputs[0] is the current reading and outputs[1], if present, the previous
// one. An empty response clears the sensor state. A placeholder name is
// replaced by the provider's suggested name, disambiguated against
// existingNames.
func CreateEnriched(original Location, username string, resp *Response, existingNames []string) Location {
	enriched := original.Clone()
	if username != "" {
		enriched.Owner = username
	}
	if resp == nil {
		return enriched
	}

	suggested := resp.MetaInfo.LocationName
	if suggested != "" && suggested != original.Name && original.IsPlaceholderName() {
		enriched.Name = Disambiguate(suggested, existingNames)
	}

	if len(resp.Outputs) == 0 {
		enriched.ClearSensorState()
		return enriched
	}

	current := resp.Outputs[0]
	enriched.CellConcentration = int(math.Round(current.CellConcentration))
	enriched.MaxCellConcentration = current.MaxCellConcentration
	enriched.DataDate = current.ImageDate
	enriched.Source = current.SatelliteImageType
	enriched.SourceFrequency = current.SatelliteImageFrequency
	enriched.ValidCellCount = current.ValidCellCount

	if len(resp.Outputs) > 1 {
		previous := resp.Outputs[1]
		change := int(math.Round(current.CellConcentration - previous.CellConcentration))
		enriched.ConcentrationChange = &change
		enriched.ChangeDate = previous.ImageDate
	} else {
		enriched.ConcentrationChange = nil
		enriched.ChangeDate = ChangeDateNA
	}

	return enriched
}
