package domain

import (
	"time"
)

// FeedResult is the outcome of one feed in one aggregation cycle. Records and
// Err are independent: a failed feed has no records and an error, a feed with
// some malformed lines has only the good records and no error.
type FeedResult struct {
	Feed    FeedID
	Shape   Shape
	Records []Record
	Err     error
}

// Snapshot is the immutable aggregate of one cycle. Build one with
// NewSnapshot; never modify the slices it hands out.
type Snapshot struct {
	fetchedAt time.Time
	stage     int
	order     []FeedID
	results   map[FeedID]FeedResult
}

// NewSnapshot assembles a snapshot from every feed's result. The operational
// stage is taken from the first OperationalStage record; when no valid level
// is present, prevStage is carried over.
func NewSnapshot(fetchedAt time.Time, results []FeedResult, prevStage int) *Snapshot {
	s := &Snapshot{
		fetchedAt: fetchedAt,
		stage:     prevStage,
		order:     make([]FeedID, 0, len(results)),
		results:   make(map[FeedID]FeedResult, len(results)),
	}
	for _, r := range results {
		s.order = append(s.order, r.Feed)
		s.results[r.Feed] = r
	}
	if stages := recordsOf[OperationalStage](s); len(stages) > 0 {
		s.stage = stages[0].Level
	}
	return s
}

// FetchedAt is when the cycle that produced the snapshot completed.
func (s *Snapshot) FetchedAt() time.Time { return s.fetchedAt }

// Stage is the operational level, 0 if it has never been known.
func (s *Snapshot) Stage() int { return s.stage }

// Feeds lists feed IDs in descriptor order.
func (s *Snapshot) Feeds() []FeedID {
	out := make([]FeedID, len(s.order))
	copy(out, s.order)
	return out
}

// Result returns the result for one feed.
func (s *Snapshot) Result(id FeedID) (FeedResult, bool) {
	r, ok := s.results[id]
	return r, ok
}

// Failed lists feeds whose result carries an error.
func (s *Snapshot) Failed() []FeedID {
	var out []FeedID
	for _, id := range s.order {
		if s.results[id].Err != nil {
			out = append(out, id)
		}
	}
	return out
}

// Empty reports whether no feed produced any record ("temporarily no data").
func (s *Snapshot) Empty() bool {
	for _, r := range s.results {
		if len(r.Records) > 0 {
			return false
		}
	}
	return true
}

// recordsOf collects records of type T across all feeds, in feed order.
func recordsOf[T Record](s *Snapshot) []T {
	var out []T
	for _, id := range s.order {
		for _, rec := range s.results[id].Records {
			if v, ok := rec.(T); ok {
				out = append(out, v)
			}
		}
	}
	return out
}

func (s *Snapshot) Alerts() []Alert                   { return recordsOf[Alert](s) }
func (s *Snapshot) WeatherStations() []WeatherStation { return recordsOf[WeatherStation](s) }
func (s *Snapshot) TrafficNotes() []TrafficNote       { return recordsOf[TrafficNote](s) }
func (s *Snapshot) Cameras() []Camera                 { return recordsOf[Camera](s) }
func (s *Snapshot) Sirens() []Siren                   { return recordsOf[Siren](s) }
func (s *Snapshot) SupportPoints() []SupportPoint     { return recordsOf[SupportPoint](s) }
func (s *Snapshot) RainGauges() []RainGauge           { return recordsOf[RainGauge](s) }
func (s *Snapshot) SkyStations() []SkyStation         { return recordsOf[SkyStation](s) }
func (s *Snapshot) Events() []Event                   { return recordsOf[Event](s) }

// SunTimes returns the first sun-times record, if any.
func (s *Snapshot) SunTimes() (SunTimes, bool) {
	st := recordsOf[SunTimes](s)
	if len(st) == 0 {
		return SunTimes{}, false
	}
	return st[0], true
}

// Plottable returns the records of one feed that carry a position.
func (s *Snapshot) Plottable(id FeedID) []Plottable {
	var out []Plottable
	for _, rec := range s.results[id].Records {
		if p, ok := rec.(Plottable); ok {
			if _, has := p.Position(); has {
				out = append(out, p)
			}
		}
	}
	return out
}
