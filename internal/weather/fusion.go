package weather

import (
	"sort"
	"time"
)

// Engine merges per-provider result containers into one coherent record per
// data kind, using the priority table for ordering and conflict resolution.
// Merging is deterministic: identical inputs always produce identical output.
type Engine struct {
	table *PriorityTable
}

// NewEngine creates a fusion engine backed by the given priority table.
func NewEngine(table *PriorityTable) *Engine {
	return &Engine{table: table}
}

// numField describes one numeric field of CurrentConditions for the generic
// per-field fill. Temperature-like fields additionally get spread-based
// conflict detection.
type numField struct {
	name        string
	temperature bool
	get         func(*CurrentConditions) *float64
	set         func(*CurrentConditions, float64)
}

var currentNumFields = []numField{
	{"temp_f", true, func(c *CurrentConditions) *float64 { return c.TempF }, func(c *CurrentConditions, v float64) { c.TempF = &v }},
	{"temp_c", true, func(c *CurrentConditions) *float64 { return c.TempC }, func(c *CurrentConditions, v float64) { c.TempC = &v }},
	{"feels_like_f", true, func(c *CurrentConditions) *float64 { return c.FeelsLikeF }, func(c *CurrentConditions, v float64) { c.FeelsLikeF = &v }},
	{"dewpoint_f", false, func(c *CurrentConditions) *float64 { return c.DewpointF }, func(c *CurrentConditions, v float64) { c.DewpointF = &v }},
	{"humidity", false, func(c *CurrentConditions) *float64 { return c.Humidity }, func(c *CurrentConditions, v float64) { c.Humidity = &v }},
	{"wind_speed_mph", false, func(c *CurrentConditions) *float64 { return c.WindSpeedMph }, func(c *CurrentConditions, v float64) { c.WindSpeedMph = &v }},
	{"wind_gust_mph", false, func(c *CurrentConditions) *float64 { return c.WindGustMph }, func(c *CurrentConditions, v float64) { c.WindGustMph = &v }},
	{"wind_dir_deg", false, func(c *CurrentConditions) *float64 { return c.WindDirDeg }, func(c *CurrentConditions, v float64) { c.WindDirDeg = &v }},
	{"pressure_mb", false, func(c *CurrentConditions) *float64 { return c.PressureMb }, func(c *CurrentConditions, v float64) { c.PressureMb = &v }},
	{"visibility_mi", false, func(c *CurrentConditions) *float64 { return c.VisibilityMi }, func(c *CurrentConditions, v float64) { c.VisibilityMi = &v }},
	{"uv_index", false, func(c *CurrentConditions) *float64 { return c.UVIndex }, func(c *CurrentConditions, v float64) { c.UVIndex = &v }},
}

type strField struct {
	name string
	get  func(*CurrentConditions) *string
	set  func(*CurrentConditions, string)
}

var currentStrFields = []strField{
	{"condition", func(c *CurrentConditions) *string { return c.Condition }, func(c *CurrentConditions, v string) { c.Condition = &v }},
	{"wind_direction", func(c *CurrentConditions) *string { return c.WindDirection }, func(c *CurrentConditions, v string) { c.WindDirection = &v }},
}

// MergeCurrent fuses current conditions from all successful sources.
// Returns (nil, attribution) when no source supplied usable data.
func (e *Engine) MergeCurrent(sources []SourceData, loc Location, domestic bool) (*CurrentConditions, SourceAttribution) {
	valid := filterSources(sources, func(s SourceData) bool { return s.Current.HasData() })
	attr := newAttribution(sources, valid)
	if len(valid) == 0 {
		return nil, attr
	}

	merged := &CurrentConditions{}

	for _, f := range currentNumFields {
		order := e.table.PrioritiesFor(f.name, CategoryCurrent, domestic)
		ranked := rankSources(valid, order)

		for _, s := range ranked {
			if v := f.get(s.Current); v != nil {
				f.set(merged, *v)
				attr.FieldSources[f.name] = s.Source
				break
			}
		}

		if !f.temperature {
			continue
		}

		// Conflict check across all reporting sources for this field.
		values := make(map[ProviderID]float64)
		var minV, maxV float64
		var selected ProviderID
		var selectedValue float64
		found := false
		for _, s := range ranked {
			v := f.get(s.Current)
			if v == nil {
				continue
			}
			values[s.Source] = *v
			if !found {
				minV, maxV = *v, *v
				selected, selectedValue = s.Source, *v
				found = true
				continue
			}
			if *v < minV {
				minV = *v
			}
			if *v > maxV {
				maxV = *v
			}
		}
		if len(values) >= 2 && maxV-minV > e.table.ConflictThreshold() {
			attr.Conflicts = append(attr.Conflicts, DataConflict{
				FieldName:      f.name,
				Values:         values,
				SelectedSource: selected,
				SelectedValue:  selectedValue,
			})
			// Force the highest-priority value explicitly. The generic fill
			// already picked it, but the override keeps the choice auditable.
			f.set(merged, selectedValue)
			attr.FieldSources[f.name] = selected
		}
	}

	for _, f := range currentStrFields {
		order := e.table.PrioritiesFor(f.name, CategoryCurrent, domestic)
		for _, s := range rankSources(valid, order) {
			if v := f.get(s.Current); v != nil {
				f.set(merged, *v)
				attr.FieldSources[f.name] = s.Source
				break
			}
		}
	}

	return merged, attr
}

// MergeForecast fuses daily forecast periods from all successful sources.
// Duplicate periods (same time span, or same name when untimed) are dropped,
// first occurrence in priority order wins; no field-level merge across
// duplicates.
func (e *Engine) MergeForecast(sources []SourceData, loc Location, domestic bool) (*Forecast, SourceAttribution) {
	valid := filterSources(sources, func(s SourceData) bool { return s.Fcast.HasData() })
	attr := newAttribution(sources, valid)
	if len(valid) == 0 {
		return nil, attr
	}

	order := e.table.PrioritiesFor(CategoryForecast, CategoryForecast, domestic)
	ranked := rankSources(valid, order)

	var periods []ForecastPeriod
	seen := make(map[string]bool)
	var generatedAt time.Time
	for _, s := range ranked {
		if s.Fcast.GeneratedAt.After(generatedAt) {
			generatedAt = s.Fcast.GeneratedAt
		}
		for _, p := range s.Fcast.Periods {
			k := periodKey(p.StartTime, p.EndTime, p.Name)
			if seen[k] {
				continue
			}
			seen[k] = true
			periods = append(periods, p)
			attr.FieldSources[k] = s.Source
		}
	}

	sortPeriods(periods, func(p ForecastPeriod) *time.Time { return p.StartTime }, func(p ForecastPeriod) string { return p.Name })

	return &Forecast{Periods: periods, GeneratedAt: generatedAt}, attr
}

// MergeHourly fuses hourly forecast periods; same dedup and ordering rules
// as MergeForecast.
func (e *Engine) MergeHourly(sources []SourceData, loc Location, domestic bool) (*HourlyForecast, SourceAttribution) {
	valid := filterSources(sources, func(s SourceData) bool { return s.Hourly.HasData() })
	attr := newAttribution(sources, valid)
	if len(valid) == 0 {
		return nil, attr
	}

	order := e.table.PrioritiesFor(CategoryHourly, CategoryHourly, domestic)
	ranked := rankSources(valid, order)

	var periods []HourlyForecastPeriod
	seen := make(map[string]bool)
	var generatedAt time.Time
	for _, s := range ranked {
		if s.Hourly.GeneratedAt.After(generatedAt) {
			generatedAt = s.Hourly.GeneratedAt
		}
		for _, p := range s.Hourly.Periods {
			k := periodKey(p.StartTime, p.EndTime, p.Name)
			if seen[k] {
				continue
			}
			seen[k] = true
			periods = append(periods, p)
			attr.FieldSources[k] = s.Source
		}
	}

	sortPeriods(periods, func(p HourlyForecastPeriod) *time.Time { return p.StartTime }, func(p HourlyForecastPeriod) string { return p.Name })

	return &HourlyForecast{Periods: periods, GeneratedAt: generatedAt}, attr
}

// MergeAlerts unions alerts across sources, deduplicated by alert ID when
// present, otherwise by (event, area). Priority order decides which copy of
// a duplicate survives.
func (e *Engine) MergeAlerts(sources []SourceData, loc Location, domestic bool) (*WeatherAlerts, SourceAttribution) {
	valid := filterSources(sources, func(s SourceData) bool { return s.Alerts.HasData() })
	attr := newAttribution(sources, valid)
	if len(valid) == 0 {
		return nil, attr
	}

	order := e.table.PrioritiesFor(CategoryAlerts, CategoryAlerts, domestic)

	var alerts []WeatherAlert
	seen := make(map[string]bool)
	for _, s := range rankSources(valid, order) {
		for _, a := range s.Alerts.Alerts {
			k := a.ID
			if k == "" {
				k = a.Event + "|" + a.AreaDesc
			}
			if seen[k] {
				continue
			}
			seen[k] = true
			alerts = append(alerts, a)
			attr.FieldSources[k] = s.Source
		}
	}

	return &WeatherAlerts{Alerts: alerts}, attr
}

// filterSources keeps successful sources whose relevant sub-object has data.
func filterSources(sources []SourceData, hasData func(SourceData) bool) []SourceData {
	var valid []SourceData
	for _, s := range sources {
		if s.Success && hasData(s) {
			valid = append(valid, s)
		}
	}
	return valid
}

// newAttribution seeds attribution from the full and the valid source sets,
// preserving input order. FieldSources is allocated only when there is at
// least one contributing source.
func newAttribution(all, valid []SourceData) SourceAttribution {
	attr := SourceAttribution{}
	for _, s := range all {
		if !s.Success {
			attr.FailedSources = append(attr.FailedSources, s.Source)
		}
	}
	for _, s := range valid {
		attr.ContributingSources = append(attr.ContributingSources, s.Source)
	}
	if len(valid) > 0 {
		attr.FieldSources = make(map[string]ProviderID)
	}
	return attr
}

// rankSources orders sources by their rank in the priority list. Unranked
// sources sort after ranked ones, keeping their original relative order.
func rankSources(sources []SourceData, order []ProviderID) []SourceData {
	rank := make(map[ProviderID]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	ranked := make([]SourceData, len(sources))
	copy(ranked, sources)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, iok := rank[ranked[i].Source]
		rj, jok := rank[ranked[j].Source]
		if iok && jok {
			return ri < rj
		}
		return iok && !jok
	})
	return ranked
}

// periodKey builds the composite dedup key for a forecast period:
// the time span when fully known, otherwise the period name.
func periodKey(start, end *time.Time, name string) string {
	if start != nil && end != nil {
		return "t|" + start.UTC().Format(time.RFC3339) + "|" + end.UTC().Format(time.RFC3339)
	}
	return "n|" + name
}

// sortPeriods orders periods by start time ascending; periods without a
// start time sort after all timed ones, ordered by name.
func sortPeriods[T any](periods []T, start func(T) *time.Time, name func(T) string) {
	sort.SliceStable(periods, func(i, j int) bool {
		si, sj := start(periods[i]), start(periods[j])
		switch {
		case si != nil && sj != nil:
			return si.Before(*sj)
		case si != nil:
			return true
		case sj != nil:
			return false
		default:
			return name(periods[i]) < name(periods[j])
		}
	})
}
