package pipeline

import (
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/hoa-dossier/internal/model"
)

// defaultMatchTolerance is ~200m in degrees at Florida latitudes.
const defaultMatchTolerance = 0.002

// matchCandidate picks the nearest candidate within toleranceDegrees of the
// resolved location. Candidates without coordinates never match. Returns nil
// when nothing is close enough.
func matchCandidate(candidates []model.Entity, loc model.Location, toleranceDegrees float64) *model.Entity {
	if !loc.HasCoordinates() {
		return nil
	}
	if toleranceDegrees <= 0 {
		toleranceDegrees = defaultMatchTolerance
	}

	target := geom.Coord{*loc.Longitude, *loc.Latitude}
	var best *model.Entity
	bestDist := toleranceDegrees
	for i := range candidates {
		c := &candidates[i]
		if !c.Location.HasCoordinates() {
			continue
		}
		dist := xy.Distance(target, geom.Coord{*c.Location.Longitude, *c.Location.Latitude})
		if dist <= bestDist {
			best = c
			bestDist = dist
		}
	}
	return best
}
