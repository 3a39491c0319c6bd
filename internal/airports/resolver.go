package airports

import (
	"fmt"
	"sort"

	"github.com/voyago/flightsearch/internal/models"
	"github.com/voyago/flightsearch/pkg/geo"
)

const (
	radiusDenseMeters   = 100_000
	radiusSparseMeters  = 250_000
	radiusDefaultMeters = 150_000

	maxAlternatives = 3
)

// ErrUnknownAirport means the reference code is not in the directory; the
// orchestrator surfaces it as a validation-class failure.
type ErrUnknownAirport struct {
	Code string
}

func (e *ErrUnknownAirport) Error() string {
	return fmt.Sprintf("unknown airport code %q", e.Code)
}

// Resolver finds alternative airports by geographic proximity. Results are
// derived per request, never persisted.
type Resolver struct {
	dir *Directory
}

func NewResolver(dir *Directory) *Resolver {
	return &Resolver{dir: dir}
}

// RadiusFor picks the search radius from the reference airport's region
// density: tight where airports cluster, wide where they don't.
func (r *Resolver) RadiusFor(code string) float64 {
	a, ok := r.dir.Lookup(code)
	if !ok {
		return radiusDefaultMeters
	}
	switch a.Density {
	case DensityDense:
		return radiusDenseMeters
	case DensitySparse:
		return radiusSparseMeters
	default:
		return radiusDefaultMeters
	}
}

// Nearby returns up to three airports within the dynamic radius of the
// reference, sorted by ascending straight-line distance, reference excluded.
// An empty list is a valid answer, not an error.
func (r *Resolver) Nearby(referenceCode string) ([]models.NearbyAirport, error) {
	return r.NearbyWithin(referenceCode, r.RadiusFor(referenceCode))
}

func (r *Resolver) NearbyWithin(referenceCode string, radiusMeters float64) ([]models.NearbyAirport, error) {
	ref, ok := r.dir.Lookup(referenceCode)
	if !ok {
		return nil, &ErrUnknownAirport{Code: referenceCode}
	}

	var nearby []models.NearbyAirport
	for _, a := range r.dir.All() {
		if a.Code == ref.Code {
			continue
		}

		distance := geo.HaversineMeters(ref.Lat, ref.Lon, a.Lat, a.Lon)
		if distance > radiusMeters {
			continue
		}

		nearby = append(nearby, models.NearbyAirport{
			Code:           a.Code,
			Name:           a.Name,
			City:           a.City,
			Country:        a.Country,
			DistanceMeters: distance,
			DriveTime:      geo.DriveTime(distance),
		})
	}

	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].DistanceMeters < nearby[j].DistanceMeters
	})
	if len(nearby) > maxAlternatives {
		nearby = nearby[:maxAlternatives]
	}

	return nearby, nil
}
