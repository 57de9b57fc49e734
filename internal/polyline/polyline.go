// Package polyline decodes the encoded polyline format used by the
// Google Directions API: each coordinate is a pair of zig-zag encoded,
// delta-compressed, 1e-5 fixed point integers written as 5-bit groups
// offset by 63, with 0x20 as the continuation bit.
package polyline

import (
	"errors"

	"github.com/sincitytravels/navigator/internal/models"
)

const (
	precision    = 1e5
	asciiOffset  = 63
	continuation = 0x20
	groupMask    = 0x1f
)

// ErrTruncated is returned when the input ends in the middle of a value
var ErrTruncated = errors.New("polyline: truncated input")

// ErrInvalidChar is returned for bytes outside the encoding alphabet
var ErrInvalidChar = errors.New("polyline: invalid character")

// Decode decodes an encoded polyline into its coordinates
func Decode(encoded string) ([]models.Coordinate, error) {
	points := make([]models.Coordinate, 0, len(encoded)/4)
	var lat, lng int64
	index := 0

	for index < len(encoded) {
		dLat, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		dLng, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		index = next

		lat += dLat
		lng += dLng
		points = append(points, models.Coordinate{
			Lat: float64(lat) / precision,
			Lng: float64(lng) / precision,
		})
	}

	return points, nil
}

// decodeValue reads one signed varint starting at index and returns it
// along with the index of the next unread byte
func decodeValue(encoded string, index int) (int64, int, error) {
	var result int64
	var shift uint

	for {
		if index >= len(encoded) {
			return 0, index, ErrTruncated
		}
		b := int64(encoded[index]) - asciiOffset
		if b < 0 || b > 0x3f {
			return 0, index, ErrInvalidChar
		}
		index++

		result |= (b & groupMask) << shift
		shift += 5
		if b < continuation {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}
