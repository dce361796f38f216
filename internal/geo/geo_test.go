package geo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/morningready/morningready/internal/geo"
)

func TestDistanceKm_SamePointIsZero(t *testing.T) {
	points := []geo.Coordinate{
		{Lat: 0, Lon: 0},
		{Lat: 35.658034, Lon: 139.701636},
		{Lat: -89.9, Lon: 179.9},
		{Lat: 52.370216, Lon: 4.895168},
	}

	for _, p := range points {
		assert.Equal(t, 0.0, geo.DistanceKm(p, p))
	}
}

func TestDistanceKm_OneDegreeAtEquator(t *testing.T) {
	d := geo.DistanceKm(geo.Coordinate{Lat: 0, Lon: 0}, geo.Coordinate{Lat: 0, Lon: 1})

	assert.Greater(t, d, 100.0)
	assert.InDelta(t, 111.19, d, 0.1)
}

func TestDistanceKm_Symmetric(t *testing.T) {
	shibuya := geo.Coordinate{Lat: 35.658034, Lon: 139.701636}
	hongo := geo.Coordinate{Lat: 35.712677, Lon: 139.761089}

	assert.Equal(t, geo.DistanceKm(shibuya, hongo), geo.DistanceKm(hongo, shibuya))
	assert.InDelta(t, 8.1, geo.DistanceKm(shibuya, hongo), 0.3)
}

func TestCoordinate_Valid(t *testing.T) {
	tests := []struct {
		name  string
		coord geo.Coordinate
		want  bool
	}{
		{"origin", geo.Coordinate{}, true},
		{"poles", geo.Coordinate{Lat: 90, Lon: 180}, true},
		{"lat too high", geo.Coordinate{Lat: 90.1, Lon: 0}, false},
		{"lon too low", geo.Coordinate{Lat: 0, Lon: -180.5}, false},
		{"nan", geo.Coordinate{Lat: math.NaN(), Lon: 0}, false},
		{"inf", geo.Coordinate{Lat: 0, Lon: math.Inf(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coord.Valid())
		})
	}
}
