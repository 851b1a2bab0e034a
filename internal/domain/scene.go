package domain

import "time"

// Scene is the background mood derived from rain, daylight and sky.
type Scene string

const (
	SceneRainyDay          Scene = "rainy-day"
	SceneRainyNight        Scene = "rainy-night"
	SceneLightCloudyDay    Scene = "light-cloudy-day"
	SceneLightCloudyNight  Scene = "light-cloudy-night"
	SceneClearDay          Scene = "clear-day"
	SceneClearNight        Scene = "clear-night"
	ScenePartlyCloudyDay   Scene = "partly-cloudy-day"
	ScenePartlyCloudyNight Scene = "partly-cloudy-night"
	SceneCloudyDay         Scene = "cloudy-day"
	SceneCloudyNight       Scene = "cloudy-night"
)

// heavyRainThreshold is the 1h accumulation (mm) above which the scene is rainy.
const heavyRainThreshold = 1.0

// ClassifyScene derives the scene from a snapshot at the given instant. The
// time-of-day is read in now's location. Precedence: heavy rain, then light
// rain, then the first sky station's condition.
func ClassifyScene(s *Snapshot, now time.Time) Scene {
	rain := RainLevel(s.RainGauges())
	night := IsNight(s, now)

	switch {
	case rain > heavyRainThreshold:
		return pick(night, SceneRainyNight, SceneRainyDay)
	case rain != 0:
		return pick(night, SceneLightCloudyNight, SceneLightCloudyDay)
	}

	sky := SkyClear
	if stations := s.SkyStations(); len(stations) > 0 {
		sky = stations[0].SkyCode
	}
	switch sky {
	case SkyPartlyCloudy:
		return pick(night, ScenePartlyCloudyNight, ScenePartlyCloudyDay)
	case SkyCloudy:
		return pick(night, SceneCloudyNight, SceneCloudyDay)
	default:
		return pick(night, SceneClearNight, SceneClearDay)
	}
}

// RainLevel is the maximum 1h accumulation over gauges that are not stale.
// Stale gauges are skipped rather than counted as zero.
func RainLevel(gauges []RainGauge) float64 {
	level := 0.0
	for _, g := range gauges {
		if g.Status == GaugeStale {
			continue
		}
		if g.Rain1h > level {
			level = g.Rain1h
		}
	}
	return level
}

// IsNight uses the snapshot's sun times when present and falls back to a
// fixed 06:00 to 18:59 day otherwise.
func IsNight(s *Snapshot, now time.Time) bool {
	minutes := now.Hour()*60 + now.Minute()
	if sun, ok := s.SunTimes(); ok {
		return minutes < sun.Sunrise || minutes > sun.Sunset
	}
	return now.Hour() < 6 || now.Hour() > 18
}

func pick(night bool, atNight, atDay Scene) Scene {
	if night {
		return atNight
	}
	return atDay
}
