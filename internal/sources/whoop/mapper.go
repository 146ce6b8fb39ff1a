package whoop

import (
	"time"

	"github.com/lifesync-hq/lifesync/internal/core"
)

// kilojouleToKcal converts Whoop's energy unit to calories.
const kilojouleToKcal = 0.239006

// MapWorkout turns a raw Whoop workout into a canonical entry. The
// second return is false when the record should be skipped: missing
// id, not yet scored, or unparseable timestamps. Unscored workouts
// are picked up by a later run once Whoop finishes computing them.
func MapWorkout(raw WorkoutRecord) (*core.Workout, bool) {
	if raw.ID == "" {
		return nil, false
	}
	if raw.Score == nil {
		return nil, false
	}

	start, err := time.Parse(time.RFC3339, raw.Start)
	if err != nil {
		return nil, false
	}
	end, err := time.Parse(time.RFC3339, raw.End)
	if err != nil {
		return nil, false
	}

	w := &core.Workout{
		Source:   core.ProviderWhoop,
		SourceID: raw.ID,
		Start:    start.UTC(),
		End:      end.UTC(),
		SportID:  raw.SportID,
	}

	if raw.Score.AverageHeartRate > 0 {
		v := raw.Score.AverageHeartRate
		w.AverageHeartRate = &v
	}
	if raw.Score.MaxHeartRate > 0 {
		v := raw.Score.MaxHeartRate
		w.MaxHeartRate = &v
	}
	if raw.Score.Kilojoule > 0 {
		kcal := raw.Score.Kilojoule * kilojouleToKcal
		// Two decimal places, matching how calories are displayed.
		rounded := float64(int(kcal*100+0.5)) / 100
		w.CaloriesBurned = &rounded
	}

	return w, true
}
