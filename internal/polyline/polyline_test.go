package polyline

import (
	"testing"

	"github.com/sincitytravels/navigator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		encoded  string
		expected []models.Coordinate
	}{
		{
			name:    "Reference example",
			encoded: "_p~iF~ps|U_ulLnnqC_mqNvxq`@",
			expected: []models.Coordinate{
				{Lat: 38.5, Lng: -120.2},
				{Lat: 40.7, Lng: -120.95},
				{Lat: 43.252, Lng: -126.453},
			},
		},
		{
			name:     "Origin",
			encoded:  "??",
			expected: []models.Coordinate{{Lat: 0, Lng: 0}},
		},
		{
			name:     "Empty input",
			encoded:  "",
			expected: []models.Coordinate{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := Decode(tt.encoded)
			require.NoError(t, err)
			require.Len(t, points, len(tt.expected))
			for i, p := range points {
				assert.InDelta(t, tt.expected[i].Lat, p.Lat, 1e-9)
				assert.InDelta(t, tt.expected[i].Lng, p.Lng, 1e-9)
			}
		})
	}
}

func TestDecodeNegativeDeltas(t *testing.T) {
	// single point at (-0.00001, -0.00001): zig-zag value 1 encodes as '@'
	points, err := Decode("@@")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, -0.00001, points[0].Lat, 1e-12)
	assert.InDelta(t, -0.00001, points[0].Lng, 1e-12)
}

func TestDecodeErrors(t *testing.T) {
	t.Run("Missing longitude", func(t *testing.T) {
		_, err := Decode("_p~iF")
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("Dangling continuation group", func(t *testing.T) {
		_, err := Decode("??_")
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("Character below the alphabet", func(t *testing.T) {
		_, err := Decode("? ")
		assert.ErrorIs(t, err, ErrInvalidChar)
	})
}
