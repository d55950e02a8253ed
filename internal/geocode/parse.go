package geocode

import (
	"encoding/json"
	"strconv"
	"strings"
)

// CensusMatch is the best-match candidate extracted from a Census response.
type CensusMatch struct {
	MatchedAddress string
	City           string
	State          string
	Zip            string
}

type censusPayload struct {
	Result struct {
		AddressMatches []struct {
			MatchedAddress    string `json:"matchedAddress"`
			AddressComponents *struct {
				City  string `json:"city"`
				State string `json:"state"`
				Zip   string `json:"zip"`
			} `json:"addressComponents"`
		} `json:"addressMatches"`
	} `json:"result"`
}

// ParseCensus extracts the first address match. ok is false when the payload
// has no candidates or is an error payload.
func ParseCensus(raw json.RawMessage) (CensusMatch, bool) {
	var p censusPayload
	if len(raw) == 0 || json.Unmarshal(raw, &p) != nil {
		return CensusMatch{}, false
	}
	if len(p.Result.AddressMatches) == 0 {
		return CensusMatch{}, false
	}
	first := p.Result.AddressMatches[0]
	m := CensusMatch{MatchedAddress: first.MatchedAddress}
	if ac := first.AddressComponents; ac != nil {
		m.City = ac.City
		m.State = ac.State
		m.Zip = ac.Zip
	}
	return m, true
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// ParseNominatim returns the coordinates of the first search result.
// Each coordinate is nil when missing or unparsable.
func ParseNominatim(raw json.RawMessage) (lat, lon *float64) {
	var places []nominatimPlace
	if len(raw) == 0 || json.Unmarshal(raw, &places) != nil || len(places) == 0 {
		return nil, nil
	}
	return parseCoord(places[0].Lat), parseCoord(places[0].Lon)
}

func parseCoord(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
