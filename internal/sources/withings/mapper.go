package withings

import (
	"math"
	"strconv"
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
)

// kgToLbs converts kilograms to pounds.
const kgToLbs = 2.20462

// MapWeighIn turns a raw measurement group into a canonical weigh-in.
// Groups without an id, a timestamp, or a weight measure are skipped.
func MapWeighIn(raw MeasureGroup) (*core.WeighIn, bool) {
	if raw.GrpID == 0 || raw.Date == 0 {
		return nil, false
	}

	var weight *Measure
	for i := range raw.Measures {
		if raw.Measures[i].Type == measTypeWeight {
			weight = &raw.Measures[i]
			break
		}
	}
	if weight == nil {
		return nil, false
	}

	kg := float64(weight.Value) * math.Pow(10, float64(weight.Unit))
	lbs := math.Round(kg*kgToLbs*100) / 100

	return &core.WeighIn{
		Source:     core.ProviderWithings,
		SourceID:   strconv.FormatInt(raw.GrpID, 10),
		MeasuredAt: time.Unix(raw.Date, 0).UTC(),
		WeightLbs:  lbs,
	}, true
}
