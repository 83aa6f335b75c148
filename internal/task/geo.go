package task

import "github.com/paulmach/orb"

// orbBoundFromLonLat converts the [minLon,minLat,maxLon,maxLat] tuple that
// internal/tile hands back into an orb.Bound.
func orbBoundFromLonLat(b [4]float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b[0], b[1]},
		Max: orb.Point{b[2], b[3]},
	}
}
