package main

import "math"

var cardinalLabels = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// dmsToDecimal converts degrees/minutes/seconds to decimal degrees,
// negated for southern and western references.
func dmsToDecimal(deg, min, sec float64, ref byte) float64 {
	dec := deg + min/60 + sec/3600
	if ref == 'S' || ref == 'W' {
		return -dec
	}
	return dec
}

// forwardBearing computes the initial great-circle bearing in degrees
// from the first point toward the second, in [0, 360). Identical points
// yield 0.
func forwardBearing(lat1, lng1, lat2, lng2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlng := (lng2 - lng1) * math.Pi / 180
	y := math.Sin(dlng) * math.Cos(rlat2)
	x := math.Cos(rlat1)*math.Sin(rlat2) - math.Sin(rlat1)*math.Cos(rlat2)*math.Cos(dlng)
	return normalizeBearing(math.Atan2(y, x) * 180 / math.Pi)
}

// normalizeBearing wraps a bearing in degrees into [0, 360).
func normalizeBearing(deg float64) float64 {
	deg = math.Mod(deg+360, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// cardinalLabel maps a bearing to its nearest compass point.
func cardinalLabel(bearing float64) string {
	idx := int(math.Round(bearing/45)) % 8
	if idx < 0 {
		idx += 8
	}
	return cardinalLabels[idx]
}
