package airports

import (
	_ "embed"
	"encoding/json"
	"strings"
)

//go:embed data/airports.json
var airportData []byte

const (
	DensityDense  = "dense"
	DensitySparse = "sparse"
)

type Airport struct {
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	City    string  `json:"city"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	// MajorHub marks airports assumed to be well served; the orchestrator's
	// route-side heuristic keys off this.
	MajorHub bool `json:"major_hub"`
	// Density classifies the surrounding region: dense regions get a smaller
	// alternative-airport radius, sparse regions a larger one.
	Density string `json:"density"`
}

type Directory struct {
	byCode   map[string]Airport
	airports []Airport
}

func NewDirectory() (*Directory, error) {
	return NewDirectoryFromJSON(airportData)
}

func NewDirectoryFromJSON(data []byte) (*Directory, error) {
	var airports []Airport
	if err := json.Unmarshal(data, &airports); err != nil {
		return nil, err
	}

	byCode := make(map[string]Airport, len(airports))
	for _, a := range airports {
		byCode[a.Code] = a
	}

	return &Directory{byCode: byCode, airports: airports}, nil
}

func (d *Directory) Lookup(code string) (Airport, bool) {
	a, ok := d.byCode[strings.ToUpper(code)]
	return a, ok
}

// IsMajorHub reports whether code names a known major hub. Unknown codes are
// not hubs.
func (d *Directory) IsMajorHub(code string) bool {
	a, ok := d.Lookup(code)
	return ok && a.MajorHub
}

func (d *Directory) All() []Airport {
	return d.airports
}
