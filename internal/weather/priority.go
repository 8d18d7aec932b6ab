package weather

// Broad data-kind categories used by the priority table. The fusion engine
// falls back from a field-specific entry to the field's category entry.
const (
	CategoryCurrent  = "current_conditions"
	CategoryForecast = "forecast"
	CategoryHourly   = "hourly_forecast"
	CategoryAlerts   = "alerts"
)

// DefaultConflictThreshold is the spread (°F) beyond which two providers'
// temperature readings are recorded as a conflict.
const DefaultConflictThreshold = 5.0

// PriorityTable ranks providers per data field and per region. It is a pure
// lookup structure; orderings are fixed at construction.
type PriorityTable struct {
	domestic      map[string][]ProviderID
	international map[string][]ProviderID
	threshold     float64
}

// NewPriorityTable builds the default table. A threshold <= 0 selects
// DefaultConflictThreshold.
func NewPriorityTable(threshold float64) *PriorityTable {
	if threshold <= 0 {
		threshold = DefaultConflictThreshold
	}
	return &PriorityTable{
		threshold: threshold,
		domestic: map[string][]ProviderID{
			CategoryCurrent:  {ProviderNWS, ProviderWeatherAPI, ProviderOpenMeteo, ProviderVisualCrossing},
			CategoryForecast: {ProviderNWS, ProviderWeatherAPI, ProviderVisualCrossing, ProviderOpenMeteo},
			CategoryHourly:   {ProviderNWS, ProviderOpenMeteo, ProviderVisualCrossing, ProviderWeatherAPI},
			CategoryAlerts:   {ProviderNWS, ProviderWeatherAPI, ProviderVisualCrossing},

			// NWS observations rarely carry UV or feels-like; prefer the
			// commercial feeds for those even domestically.
			"uv_index":     {ProviderWeatherAPI, ProviderVisualCrossing, ProviderOpenMeteo},
			"feels_like_f": {ProviderWeatherAPI, ProviderVisualCrossing, ProviderOpenMeteo, ProviderNWS},
		},
		international: map[string][]ProviderID{
			CategoryCurrent:  {ProviderOpenMeteo, ProviderWeatherAPI, ProviderVisualCrossing},
			CategoryForecast: {ProviderOpenMeteo, ProviderWeatherAPI, ProviderVisualCrossing},
			CategoryHourly:   {ProviderOpenMeteo, ProviderVisualCrossing, ProviderWeatherAPI},
			CategoryAlerts:   {ProviderWeatherAPI, ProviderVisualCrossing},

			"uv_index": {ProviderWeatherAPI, ProviderVisualCrossing, ProviderOpenMeteo},
		},
	}
}

// Priorities returns the provider ordering for a field or category name.
// Unknown names return nil.
func (t *PriorityTable) Priorities(name string, domestic bool) []ProviderID {
	m := t.international
	if domestic {
		m = t.domestic
	}
	return m[name]
}

// PrioritiesFor resolves the ordering for a specific field, falling back to
// the field's category when no field-specific entry exists.
func (t *PriorityTable) PrioritiesFor(field, category string, domestic bool) []ProviderID {
	if order := t.Priorities(field, domestic); order != nil {
		return order
	}
	return t.Priorities(category, domestic)
}

// ConflictThreshold returns the scalar disagreement threshold.
func (t *PriorityTable) ConflictThreshold() float64 {
	return t.threshold
}
