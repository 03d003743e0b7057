package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/dailyyoga/regstats/db"
	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/snapshot"
)

// National aggregates the registry per province of household registration.
type National struct {
	q      querier
	log    logger.Logger
	cfg    *Config
	tables Tables
}

var _ Source = (*National)(nil)

// NewNational creates the nationwide source.
func NewNational(database db.Database, log logger.Logger, cfg *Config) (*National, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &National{
		q:      querier{db: database},
		log:    log,
		cfg:    cfg,
		tables: TablesFor(cfg.UseMemoryTables),
	}, nil
}

// FetchAll implements Source.
func (n *National) FetchAll(ctx context.Context) (*Batch, error) {
	population := sync.OnceValues(func() (map[string]float64, error) {
		return n.population(ctx)
	})

	queries := []Query{
		{Name: snapshot.Population, Kind: snapshot.KindValues, Fetch: func(context.Context) (snapshot.Metric, error) {
			p, err := population()
			return snapshot.Values(p), err
		}},
		{Name: snapshot.Density, Kind: snapshot.KindValues, Fetch: func(context.Context) (snapshot.Metric, error) {
			p, err := population()
			if err != nil {
				return snapshot.Metric{}, err
			}
			return snapshot.Values(density(p)), nil
		}},
		{Name: snapshot.Marriage, Kind: snapshot.KindGroups, Fetch: func(ctx context.Context) (snapshot.Metric, error) {
			return n.marriage(ctx, population)
		}},
		{Name: snapshot.Migration, Kind: snapshot.KindFlows, Fetch: n.migration},
		{Name: snapshot.Gender, Kind: snapshot.KindGroups, Fetch: n.gender},
		{Name: snapshot.Age, Kind: snapshot.KindGroups, Fetch: n.age},
		{Name: snapshot.Ethnicity, Kind: snapshot.KindGroups, Fetch: n.ethnicity},
	}
	return Collect(ctx, n.log, queries, n.cfg.Parallelism)
}

func (n *National) population(ctx context.Context) (map[string]float64, error) {
	rows, err := n.q.rows(ctx, fmt.Sprintf(
		`SELECT hukou_province AS region, COUNT(*) AS count FROM %s
		WHERE hukou_province IS NOT NULL GROUP BY hukou_province`, n.tables.Population))
	if err != nil {
		return nil, err
	}
	return valuesBy(rows, NormalizeProvince), nil
}

// density is people per square kilometre; provinces without a known area
// report 0.
func density(population map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(population))
	for p, count := range population {
		area, ok := Area(p)
		if !ok {
			out[p] = 0
			continue
		}
		out[p] = snapshot.Ratio(count, area, 1)
	}
	return out
}

func (n *National) marriage(ctx context.Context, population func() (map[string]float64, error)) (snapshot.Metric, error) {
	rows, err := n.q.rows(ctx, fmt.Sprintf(
		`SELECT hukou_province AS region, COUNT(DISTINCT id_no) AS count FROM (
			SELECT p.hukou_province, p.id_no FROM %[1]s p
			INNER JOIN %[2]s m ON p.id_no = m.male_id_no
			WHERE p.hukou_province IS NOT NULL
			UNION
			SELECT p.hukou_province, p.id_no FROM %[1]s p
			INNER JOIN %[2]s m ON p.id_no = m.female_id_no
			WHERE p.hukou_province IS NOT NULL
		) married GROUP BY hukou_province`, n.tables.Population, n.tables.Marriage))
	if err != nil {
		return snapshot.Metric{}, err
	}
	totals, err := population()
	if err != nil {
		return snapshot.Metric{}, err
	}

	married := valuesBy(rows, NormalizeProvince)
	out := make(map[string]map[string]float64, len(married))
	for p, count := range married {
		total := totals[p]
		out[p] = map[string]float64{
			"married_count": count,
			"marriage_rate": snapshot.Ratio(count, total, 100),
			"total":         total,
		}
	}
	return snapshot.Groups(out), nil
}

func (n *National) migration(ctx context.Context) (snapshot.Metric, error) {
	rows, err := n.q.rows(ctx, fmt.Sprintf(
		`SELECT hukou_province AS region, cur_province AS category, COUNT(*) AS count FROM %s
		WHERE hukou_province IS NOT NULL AND cur_province IS NOT NULL
		AND hukou_province != cur_province
		GROUP BY hukou_province, cur_province
		HAVING count >= ?
		ORDER BY count DESC`, n.tables.Population), n.cfg.MinMigrationCount)
	if err != nil {
		return snapshot.Metric{}, err
	}

	type pair struct{ from, to string }
	index := make(map[pair]int, len(rows))
	flows := make([]snapshot.Flow, 0, len(rows))
	for _, r := range rows {
		k := pair{NormalizeProvince(r.Region), NormalizeProvince(r.Category)}
		if k.from == k.to {
			continue
		}
		if i, ok := index[k]; ok {
			flows[i].Count += r.Count
			continue
		}
		index[k] = len(flows)
		flows = append(flows, snapshot.Flow{From: k.from, To: k.to, Count: r.Count})
	}
	return snapshot.Flows(flows), nil
}

func (n *National) gender(ctx context.Context) (snapshot.Metric, error) {
	rows, err := n.q.rows(ctx, fmt.Sprintf(
		`SELECT hukou_province AS region, gender AS category, COUNT(*) AS count FROM %s
		WHERE hukou_province IS NOT NULL AND gender IS NOT NULL
		GROUP BY hukou_province, gender`, n.tables.Population))
	if err != nil {
		return snapshot.Metric{}, err
	}
	counts := groupsBy(rows, NormalizeProvince)
	out := make(map[string]map[string]float64, len(counts))
	for p, c := range counts {
		out[p] = genderStats(c)
	}
	return snapshot.Groups(out), nil
}

func (n *National) age(ctx context.Context) (snapshot.Metric, error) {
	rows, err := n.q.rows(ctx, fmt.Sprintf(
		`SELECT hukou_province AS region, %s AS category, COUNT(*) AS count FROM %s
		WHERE hukou_province IS NOT NULL AND birth_date IS NOT NULL
		GROUP BY hukou_province, category`, ageBucketSQL, n.tables.Population))
	if err != nil {
		return snapshot.Metric{}, err
	}
	return snapshot.Groups(groupsBy(rows, NormalizeProvince, ageBuckets...)), nil
}

func (n *National) ethnicity(ctx context.Context) (snapshot.Metric, error) {
	rows, err := n.q.rows(ctx, fmt.Sprintf(
		`SELECT hukou_province AS region, ethnicity AS category, COUNT(*) AS count FROM %s
		WHERE hukou_province IS NOT NULL AND ethnicity IS NOT NULL
		GROUP BY hukou_province, ethnicity`, n.tables.Population))
	if err != nil {
		return snapshot.Metric{}, err
	}
	return snapshot.Groups(groupsBy(rows, NormalizeProvince)), nil
}
