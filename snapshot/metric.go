package snapshot

import (
	"maps"
	"slices"
	"sort"
)

// Kind identifies the shape of a metric payload.
type Kind string

const (
	// KindValues is region -> number.
	KindValues Kind = "values"
	// KindGroups is region -> category -> number.
	KindGroups Kind = "groups"
	// KindFlows is a sequence of region-to-region flow records.
	KindFlows Kind = "flows"
)

// Metric names produced by the national and regional sources.
const (
	Population       = "population"
	Density          = "density"
	Marriage         = "marriage"
	Migration        = "migration"
	Gender           = "gender"
	Age              = "age"
	Ethnicity        = "ethnicity"
	TotalPopulation  = "total_population"
	Education        = "education"
	MarriageByYear   = "marriage_by_year"
	Death            = "death"
	DeathByYear      = "death_by_year"
	Income           = "income"
	MigrationBalance = "migration_balance"
)

// Flow is one origin/destination record of a migration-type metric.
type Flow struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int64  `json:"count"`
}

// Metric is a single named statistic. Exactly one of Values, Groups or
// Flows is meaningful, selected by Kind.
type Metric struct {
	Kind   Kind                          `json:"kind"`
	Values map[string]float64            `json:"values"`
	Groups map[string]map[string]float64 `json:"groups"`
	Flows  []Flow                        `json:"flows"`
}

// Metrics maps metric name to Metric.
type Metrics map[string]Metric

// Empty returns the default value recorded for a metric whose query failed:
// an empty, non-nil container of the given kind.
func Empty(kind Kind) Metric {
	switch kind {
	case KindGroups:
		return Metric{Kind: kind, Groups: map[string]map[string]float64{}}
	case KindFlows:
		return Metric{Kind: kind, Flows: []Flow{}}
	default:
		return Metric{Kind: KindValues, Values: map[string]float64{}}
	}
}

// Values builds a KindValues metric.
func Values(v map[string]float64) Metric {
	if v == nil {
		v = map[string]float64{}
	}
	return Metric{Kind: KindValues, Values: v}
}

// Groups builds a KindGroups metric.
func Groups(g map[string]map[string]float64) Metric {
	if g == nil {
		g = map[string]map[string]float64{}
	}
	return Metric{Kind: KindGroups, Groups: g}
}

// Flows builds a KindFlows metric.
func Flows(f []Flow) Metric {
	if f == nil {
		f = []Flow{}
	}
	return Metric{Kind: KindFlows, Flows: f}
}

// Len reports the number of records held by the metric.
func (m Metric) Len() int {
	switch m.Kind {
	case KindGroups:
		return len(m.Groups)
	case KindFlows:
		return len(m.Flows)
	default:
		return len(m.Values)
	}
}

// Data returns a copy of the container selected by Kind. Writes to it do
// not reach the snapshot the metric belongs to.
func (m Metric) Data() any {
	switch m.Kind {
	case KindGroups:
		return cloneGroups(m.Groups)
	case KindFlows:
		return slices.Clone(m.Flows)
	default:
		return maps.Clone(m.Values)
	}
}

func cloneGroups(g map[string]map[string]float64) map[string]map[string]float64 {
	if g == nil {
		return nil
	}
	out := make(map[string]map[string]float64, len(g))
	for region, categories := range g {
		out[region] = maps.Clone(categories)
	}
	return out
}

// Regions returns the sorted set of regions the metric has data for.
func (m Metric) Regions() []string {
	seen := make(map[string]struct{})
	switch m.Kind {
	case KindGroups:
		for r := range m.Groups {
			seen[r] = struct{}{}
		}
	case KindFlows:
		for _, f := range m.Flows {
			seen[f.From] = struct{}{}
			seen[f.To] = struct{}{}
		}
	default:
		for r := range m.Values {
			seen[r] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Lookup returns a copy of the metric's data for region. For flow metrics
// every flow that starts or ends in region is returned. The second result is
// false when the region has no data.
func (m Metric) Lookup(region string) (any, bool) {
	switch m.Kind {
	case KindGroups:
		g, ok := m.Groups[region]
		return maps.Clone(g), ok
	case KindFlows:
		var out []Flow
		for _, f := range m.Flows {
			if f.From == region || f.To == region {
				out = append(out, f)
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	default:
		v, ok := m.Values[region]
		return v, ok
	}
}
