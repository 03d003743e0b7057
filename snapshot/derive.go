package snapshot

import "sort"

// Ranked is one entry of a top-N ranking.
type Ranked struct {
	Region string  `json:"region"`
	Value  float64 `json:"value"`
}

// Summary holds totals computed once per refresh.
type Summary struct {
	TotalPopulation int64 `json:"total_population"`
	TotalRegions    int   `json:"total_regions"`
	TotalMarried    int64 `json:"total_married"`
	TotalMigrations int   `json:"total_migrations"`
}

// Derived holds rankings and summaries precomputed from the raw metrics.
type Derived struct {
	Regions         []string            `json:"regions"`
	TopRankings     map[string][]Ranked `json:"top_rankings"`
	MigrationTopIn  []Ranked            `json:"migration_top_in"`
	MigrationTopOut []Ranked            `json:"migration_top_out"`
	Summary         Summary             `json:"summary"`
}

// rankedMetrics are the values metrics that get a top-N ranking.
var rankedMetrics = []string{Population, Density}

// Derive computes rankings and totals from metrics. topN <= 0 means 10.
func Derive(metrics Metrics, topN int) Derived {
	if topN <= 0 {
		topN = 10
	}
	d := Derived{
		Regions:         regionList(metrics),
		TopRankings:     make(map[string][]Ranked),
		MigrationTopIn:  []Ranked{},
		MigrationTopOut: []Ranked{},
	}

	for _, name := range rankedMetrics {
		m, ok := metrics[name]
		if !ok || m.Kind != KindValues {
			continue
		}
		d.TopRankings[name] = top(m.Values, topN)
	}

	if m, ok := metrics[Migration]; ok && m.Kind == KindFlows {
		in := make(map[string]float64)
		out := make(map[string]float64)
		for _, f := range m.Flows {
			in[f.To] += float64(f.Count)
			out[f.From] += float64(f.Count)
		}
		d.MigrationTopIn = top(in, topN)
		d.MigrationTopOut = top(out, topN)
		d.Summary.TotalMigrations = len(m.Flows)
	}

	d.Summary.TotalRegions = len(d.Regions)
	d.Summary.TotalPopulation = totalPopulation(metrics)
	d.Summary.TotalMarried = totalMarried(metrics)
	return d
}

// regionList orders regions by population descending, falling back to the
// sorted union of every values/groups metric's regions.
func regionList(metrics Metrics) []string {
	if m, ok := metrics[Population]; ok && m.Kind == KindValues && len(m.Values) > 0 {
		ranked := top(m.Values, len(m.Values))
		out := make([]string, len(ranked))
		for i, r := range ranked {
			out[i] = r.Region
		}
		return out
	}

	seen := make(map[string]struct{})
	for _, m := range metrics {
		if m.Kind == KindFlows {
			continue
		}
		for _, r := range m.Regions() {
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

func totalPopulation(metrics Metrics) int64 {
	if m, ok := metrics[TotalPopulation]; ok && m.Kind == KindValues && len(m.Values) > 0 {
		return int64(sum(m.Values))
	}
	if m, ok := metrics[Population]; ok && m.Kind == KindValues {
		return int64(sum(m.Values))
	}
	return 0
}

func totalMarried(metrics Metrics) int64 {
	m, ok := metrics[Marriage]
	if !ok {
		return 0
	}
	switch m.Kind {
	case KindGroups:
		var total float64
		for _, g := range m.Groups {
			total += g["married_count"]
		}
		return int64(total)
	case KindValues:
		return int64(sum(m.Values))
	}
	return 0
}

func sum(values map[string]float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// top returns the n largest entries, ties broken by region name.
func top(values map[string]float64, n int) []Ranked {
	out := make([]Ranked, 0, len(values))
	for r, v := range values {
		out = append(out, Ranked{Region: r, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Region < out[j].Region
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
