package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseLatLng parses a "lat,lng" pair in decimal degrees.
func ParseLatLng(s string) (lat, lng float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%q is not in lat,lng form", s)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("latitude %q is not a number", parts[0])
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("longitude %q is not a number", parts[1])
	}
	// NaN 与任何数比较都为 false，需要反向判断
	if !(lat >= -90 && lat <= 90) {
		return 0, 0, fmt.Errorf("latitude %v out of range", lat)
	}
	if !(lng >= -180 && lng <= 180) {
		return 0, 0, fmt.Errorf("longitude %v out of range", lng)
	}
	return lat, lng, nil
}

// FormatLatLng renders a pair the way it is stored on-chain.
func FormatLatLng(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}
