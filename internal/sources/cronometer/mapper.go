package cronometer

import "github.com/lifesync-hq/lifesync/internal/core"

// MapNutritionEntry turns a validated day record into a canonical
// nutrition entry. Days with all-zero macros are empty diary days and
// are skipped. The date doubles as the source id, since Cronometer
// aggregates one record per day.
func MapNutritionEntry(rec DayRecord) (*core.NutritionEntry, bool) {
	if *rec.Calories == 0 && *rec.Fat == 0 && *rec.Carbs == 0 && *rec.Protein == 0 {
		return nil, false
	}

	return &core.NutritionEntry{
		Source:     core.ProviderCronometer,
		SourceID:   *rec.Date,
		ConsumedOn: *rec.Date,
		Calories:   *rec.Calories,
		Fat:        *rec.Fat,
		Carbs:      *rec.Carbs,
		Protein:    *rec.Protein,
	}, true
}
