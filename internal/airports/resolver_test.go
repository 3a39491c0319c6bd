package airports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	dir, err := NewDirectory()
	require.NoError(t, err)
	return NewResolver(dir)
}

func TestRadiusForDensity(t *testing.T) {
	r := newTestResolver(t)

	assert.Equal(t, float64(radiusDenseMeters), r.RadiusFor("JFK"))
	assert.Equal(t, float64(radiusSparseMeters), r.RadiusFor("SYD"))
	// SIN carries no density classification, so it falls back to the default.
	assert.Equal(t, float64(radiusDefaultMeters), r.RadiusFor("SIN"))
	assert.Equal(t, float64(radiusDefaultMeters), r.RadiusFor("XXX"))
}

func TestNearbyDenseRegion(t *testing.T) {
	r := newTestResolver(t)

	nearby, err := r.Nearby("JFK")
	require.NoError(t, err)
	require.Len(t, nearby, 2)

	// Sorted by ascending distance: LaGuardia before Newark, Philadelphia out
	// of the 100 km dense radius.
	assert.Equal(t, "LGA", nearby[0].Code)
	assert.Equal(t, "EWR", nearby[1].Code)
	assert.Less(t, nearby[0].DistanceMeters, nearby[1].DistanceMeters)
	for _, a := range nearby {
		assert.NotEqual(t, "JFK", a.Code)
		assert.NotEmpty(t, a.DriveTime)
		assert.LessOrEqual(t, a.DistanceMeters, float64(radiusDenseMeters))
	}
}

func TestNearbySparseRegionUsesWiderRadius(t *testing.T) {
	r := newTestResolver(t)

	// Sydney is ~236 km from Canberra: outside a dense radius, inside the
	// sparse one.
	nearby, err := r.Nearby("CBR")
	require.NoError(t, err)
	require.Len(t, nearby, 1)
	assert.Equal(t, "SYD", nearby[0].Code)

	tight, err := r.NearbyWithin("CBR", radiusDenseMeters)
	require.NoError(t, err)
	assert.Empty(t, tight)
}

func TestNearbyEmptyIsValid(t *testing.T) {
	r := newTestResolver(t)

	for _, code := range []string{"PER", "SIN"} {
		nearby, err := r.Nearby(code)
		require.NoError(t, err, code)
		assert.Empty(t, nearby, code)
	}
}

func TestNearbyCapsAtThree(t *testing.T) {
	r := newTestResolver(t)

	// A continent-wide radius around Frankfurt pulls in far more than three
	// candidates.
	nearby, err := r.NearbyWithin("FRA", 2_000_000)
	require.NoError(t, err)
	require.Len(t, nearby, maxAlternatives)
	for i := 1; i < len(nearby); i++ {
		assert.LessOrEqual(t, nearby[i-1].DistanceMeters, nearby[i].DistanceMeters)
	}
}

func TestNearbyUnknownAirport(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Nearby("ZZZ")
	var unknown *ErrUnknownAirport
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ZZZ", unknown.Code)
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	dir, err := NewDirectory()
	require.NoError(t, err)

	a, ok := dir.Lookup("jfk")
	require.True(t, ok)
	assert.Equal(t, "JFK", a.Code)
	assert.True(t, dir.IsMajorHub("jfk"))
	assert.False(t, dir.IsMajorHub("LGA"))
	assert.False(t, dir.IsMajorHub("ZZZ"))
}
