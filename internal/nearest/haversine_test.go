package nearest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine_KnownDistances(t *testing.T) {
	oneDegree := EarthRadiusKm * math.Pi / 180

	assert.InDelta(t, oneDegree, Haversine(0, 0, 1, 0), 1e-9)
	assert.InDelta(t, oneDegree, Haversine(0, 0, 0, 1), 1e-9)
	assert.InDelta(t, math.Pi*EarthRadiusKm, Haversine(0, 0, 0, 180), 1e-6)
	assert.InDelta(t, math.Pi*EarthRadiusKm, Haversine(90, 0, -90, 0), 1e-6)
	assert.Equal(t, 0.0, Haversine(-12.0464, -77.0428, -12.0464, -77.0428))
}

func TestHaversine_Symmetric(t *testing.T) {
	d1 := Haversine(-12.0464, -77.0428, -12.05, -77.03)
	d2 := Haversine(-12.05, -77.03, -12.0464, -77.0428)
	assert.InDelta(t, d1, d2, 1e-12)
}

func TestHaversine_TriangleInequality(t *testing.T) {
	pts := [][2]float64{
		{-12.0464, -77.0428},
		{-12.05, -77.03},
		{-11.98, -77.12},
		{0, 0},
		{45, 90},
		{-89.9, 179.9},
		{51.5, -0.12},
	}
	for _, a := range pts {
		for _, b := range pts {
			for _, c := range pts {
				ac := Haversine(a[0], a[1], c[0], c[1])
				ab := Haversine(a[0], a[1], b[0], b[1])
				bc := Haversine(b[0], b[1], c[0], c[1])
				assert.LessOrEqual(t, ac, ab+bc+1e-9)
			}
		}
	}
}
