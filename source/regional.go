package source

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dailyyoga/regstats/db"
	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/snapshot"
)

// Regional aggregates the registry for a single province: residents are
// people whose household registration or current residence is in it.
// Province-wide metrics are keyed by the province name, city population by
// city.
type Regional struct {
	q        querier
	log      logger.Logger
	cfg      *Config
	tables   Tables
	province string
}

var _ Source = (*Regional)(nil)

// NewRegional creates the source for cfg.Province.
func NewRegional(database db.Database, log logger.Logger, cfg *Config) (*Regional, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Regional{
		q:        querier{db: database},
		log:      log,
		cfg:      cfg,
		tables:   TablesFor(cfg.UseMemoryTables),
		province: cfg.Province,
	}, nil
}

// Province is the full name of the province this source covers.
func (r *Regional) Province() string {
	return r.province
}

const residentFilter = `(hukou_province = ? OR cur_province = ?)`

// FetchAll implements Source.
func (r *Regional) FetchAll(ctx context.Context) (*Batch, error) {
	incomeDefault := snapshot.Groups(map[string]map[string]float64{
		r.province: {"count": 0, "avg": 0, "max": 0, "min": 0},
	})
	balanceDefault := snapshot.Groups(map[string]map[string]float64{
		r.province: {"inflow": 0, "outflow": 0, "net": 0},
	})

	queries := []Query{
		{Name: snapshot.TotalPopulation, Kind: snapshot.KindValues, Fetch: r.totalPopulation},
		{Name: snapshot.Population, Kind: snapshot.KindValues, Fetch: r.cityPopulation},
		{Name: snapshot.Gender, Kind: snapshot.KindGroups, Fetch: r.gender},
		{Name: snapshot.Age, Kind: snapshot.KindGroups, Fetch: r.age},
		{Name: snapshot.Education, Kind: snapshot.KindGroups, Fetch: r.category("education_level")},
		{Name: snapshot.Ethnicity, Kind: snapshot.KindGroups, Fetch: r.category("ethnicity")},
		{Name: snapshot.Marriage, Kind: snapshot.KindValues, Fetch: r.marriageTotal},
		{Name: snapshot.MarriageByYear, Kind: snapshot.KindGroups, Fetch: r.marriageByYear},
		{Name: snapshot.Death, Kind: snapshot.KindValues, Fetch: r.deathTotal},
		{Name: snapshot.DeathByYear, Kind: snapshot.KindGroups, Fetch: r.deathByYear},
		{Name: snapshot.Income, Kind: snapshot.KindGroups, Default: &incomeDefault, Fetch: r.income},
		{Name: snapshot.Migration, Kind: snapshot.KindFlows, Fetch: r.migration},
		{Name: snapshot.MigrationBalance, Kind: snapshot.KindGroups, Default: &balanceDefault, Fetch: r.balance},
	}
	return Collect(ctx, r.log, queries, r.cfg.Parallelism)
}

func (r *Regional) single(v float64) snapshot.Metric {
	return snapshot.Values(map[string]float64{r.province: v})
}

func (r *Regional) totalPopulation(ctx context.Context) (snapshot.Metric, error) {
	n, err := r.q.scalar(ctx, fmt.Sprintf(
		`SELECT COUNT(DISTINCT id_no) FROM %s WHERE `+residentFilter,
		r.tables.Population), r.province, r.province)
	if err != nil {
		return snapshot.Metric{}, err
	}
	return r.single(float64(n)), nil
}

func (r *Regional) cityPopulation(ctx context.Context) (snapshot.Metric, error) {
	rows, err := r.q.rows(ctx, fmt.Sprintf(
		`SELECT hukou_city AS region, COUNT(DISTINCT id_no) AS count FROM %s
		WHERE `+residentFilter+` AND hukou_city IS NOT NULL
		GROUP BY hukou_city ORDER BY count DESC`,
		r.tables.Population), r.province, r.province)
	if err != nil {
		return snapshot.Metric{}, err
	}
	return snapshot.Values(valuesBy(rows, identity)), nil
}

// categoryRows runs a province-wide breakdown and keys it by the province.
func (r *Regional) categoryRows(ctx context.Context, expr, notNull string) (map[string]float64, error) {
	rows, err := r.q.rows(ctx, fmt.Sprintf(
		`SELECT %s AS category, COUNT(DISTINCT id_no) AS count FROM %s
		WHERE `+residentFilter+` AND %s IS NOT NULL
		GROUP BY category ORDER BY count DESC`,
		expr, r.tables.Population, notNull), r.province, r.province)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		out[row.Category] += float64(row.Count)
	}
	return out, nil
}

func (r *Regional) category(column string) func(context.Context) (snapshot.Metric, error) {
	return func(ctx context.Context) (snapshot.Metric, error) {
		counts, err := r.categoryRows(ctx, column, column)
		if err != nil {
			return snapshot.Metric{}, err
		}
		return snapshot.Groups(map[string]map[string]float64{r.province: counts}), nil
	}
}

func (r *Regional) gender(ctx context.Context) (snapshot.Metric, error) {
	counts, err := r.categoryRows(ctx, "gender", "gender")
	if err != nil {
		return snapshot.Metric{}, err
	}
	return snapshot.Groups(map[string]map[string]float64{r.province: genderStats(counts)}), nil
}

func (r *Regional) age(ctx context.Context) (snapshot.Metric, error) {
	counts, err := r.categoryRows(ctx, ageBucketSQL, "birth_date")
	if err != nil {
		return snapshot.Metric{}, err
	}
	for _, b := range ageBuckets {
		if _, ok := counts[b]; !ok {
			counts[b] = 0
		}
	}
	return snapshot.Groups(map[string]map[string]float64{r.province: counts}), nil
}

const marriageJoin = `FROM %[1]s m
	LEFT JOIN %[2]s p1 ON p1.id_no = m.male_id_no AND (p1.hukou_province = ? OR p1.cur_province = ?)
	LEFT JOIN %[2]s p2 ON p2.id_no = m.female_id_no AND (p2.hukou_province = ? OR p2.cur_province = ?)
	WHERE (p1.id_no IS NOT NULL OR p2.id_no IS NOT NULL)`

func (r *Regional) marriageArgs() []any {
	return []any{r.province, r.province, r.province, r.province}
}

func (r *Regional) marriageTotal(ctx context.Context) (snapshot.Metric, error) {
	n, err := r.q.scalar(ctx, fmt.Sprintf(
		`SELECT COUNT(DISTINCT CONCAT(m.male_id_no, '-', m.female_id_no)) `+marriageJoin,
		r.tables.Marriage, r.tables.Population), r.marriageArgs()...)
	if err != nil {
		return snapshot.Metric{}, err
	}
	return r.single(float64(n)), nil
}

func (r *Regional) marriageByYear(ctx context.Context) (snapshot.Metric, error) {
	rows, err := r.q.rows(ctx, fmt.Sprintf(
		`SELECT CAST(YEAR(m.marriage_date) AS CHAR) AS category,
		COUNT(DISTINCT CONCAT(m.male_id_no, '-', m.female_id_no)) AS count `+marriageJoin+`
		AND m.marriage_date IS NOT NULL
		GROUP BY YEAR(m.marriage_date) ORDER BY category DESC LIMIT ?`,
		r.tables.Marriage, r.tables.Population), append(r.marriageArgs(), r.cfg.YearLimit)...)
	if err != nil {
		return snapshot.Metric{}, err
	}
	return r.byYear(rows), nil
}

func (r *Regional) deathTotal(ctx context.Context) (snapshot.Metric, error) {
	n, err := r.q.scalar(ctx, fmt.Sprintf(
		`SELECT COUNT(DISTINCT id_no) FROM %s WHERE `+residentFilter,
		r.tables.Deceased), r.province, r.province)
	if err != nil {
		return snapshot.Metric{}, err
	}
	return r.single(float64(n)), nil
}

func (r *Regional) deathByYear(ctx context.Context) (snapshot.Metric, error) {
	rows, err := r.q.rows(ctx, fmt.Sprintf(
		`SELECT CAST(YEAR(death_date) AS CHAR) AS category, COUNT(DISTINCT id_no) AS count FROM %s
		WHERE `+residentFilter+` AND death_date IS NOT NULL
		GROUP BY YEAR(death_date) ORDER BY category DESC LIMIT ?`,
		r.tables.Deceased), r.province, r.province, r.cfg.YearLimit)
	if err != nil {
		return snapshot.Metric{}, err
	}
	return r.byYear(rows), nil
}

func (r *Regional) byYear(rows []countRow) snapshot.Metric {
	years := make(map[string]float64, len(rows))
	for _, row := range rows {
		if _, err := strconv.Atoi(row.Category); err != nil {
			continue
		}
		years[row.Category] += float64(row.Count)
	}
	return snapshot.Groups(map[string]map[string]float64{r.province: years})
}

type incomeRow struct {
	Count     int64
	AvgIncome *float64
	MaxIncome *float64
	MinIncome *float64
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func (r *Regional) income(ctx context.Context) (snapshot.Metric, error) {
	gdb, err := r.q.conn(ctx)
	if err != nil {
		return snapshot.Metric{}, err
	}
	var row incomeRow
	err = gdb.Raw(fmt.Sprintf(
		`SELECT COUNT(DISTINCT id_no) AS count, AVG(income) AS avg_income,
		MAX(income) AS max_income, MIN(income) AS min_income FROM %s
		WHERE `+residentFilter+` AND income IS NOT NULL AND income > 0`,
		r.tables.Population), r.province, r.province).Scan(&row).Error
	if err != nil {
		return snapshot.Metric{}, err
	}
	stats := map[string]float64{"count": 0, "avg": 0, "max": 0, "min": 0}
	if row.Count > 0 {
		stats["count"] = float64(row.Count)
		stats["avg"] = snapshot.Round2(deref(row.AvgIncome))
		stats["max"] = deref(row.MaxIncome)
		stats["min"] = deref(row.MinIncome)
	}
	return snapshot.Groups(map[string]map[string]float64{r.province: stats}), nil
}

// migration lists the top origins moving in and top destinations moving out.
func (r *Regional) migration(ctx context.Context) (snapshot.Metric, error) {
	in, err := r.q.rows(ctx, fmt.Sprintf(
		`SELECT hukou_province AS region, COUNT(DISTINCT id_no) AS count FROM %s
		WHERE hukou_province != ? AND cur_province = ?
		GROUP BY hukou_province ORDER BY count DESC LIMIT ?`,
		r.tables.Population), r.province, r.province, r.cfg.FlowLimit)
	if err != nil {
		return snapshot.Metric{}, err
	}
	out, err := r.q.rows(ctx, fmt.Sprintf(
		`SELECT cur_province AS region, COUNT(DISTINCT id_no) AS count FROM %s
		WHERE hukou_province = ? AND cur_province != ?
		GROUP BY cur_province ORDER BY count DESC LIMIT ?`,
		r.tables.Population), r.province, r.province, r.cfg.FlowLimit)
	if err != nil {
		return snapshot.Metric{}, err
	}

	flows := make([]snapshot.Flow, 0, len(in)+len(out))
	for _, row := range in {
		flows = append(flows, snapshot.Flow{From: row.Region, To: r.province, Count: row.Count})
	}
	for _, row := range out {
		flows = append(flows, snapshot.Flow{From: r.province, To: row.Region, Count: row.Count})
	}
	return snapshot.Flows(flows), nil
}

func (r *Regional) balance(ctx context.Context) (snapshot.Metric, error) {
	inflow, err := r.q.scalar(ctx, fmt.Sprintf(
		`SELECT COUNT(DISTINCT id_no) FROM %s WHERE hukou_province != ? AND cur_province = ?`,
		r.tables.Population), r.province, r.province)
	if err != nil {
		return snapshot.Metric{}, err
	}
	outflow, err := r.q.scalar(ctx, fmt.Sprintf(
		`SELECT COUNT(DISTINCT id_no) FROM %s WHERE hukou_province = ? AND cur_province != ?`,
		r.tables.Population), r.province, r.province)
	if err != nil {
		return snapshot.Metric{}, err
	}
	return snapshot.Groups(map[string]map[string]float64{r.province: {
		"inflow":  float64(inflow),
		"outflow": float64(outflow),
		"net":     float64(inflow - outflow),
	}}), nil
}
