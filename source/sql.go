package source

import (
	"context"

	"github.com/dailyyoga/regstats/db"
	"github.com/dailyyoga/regstats/snapshot"
	"gorm.io/gorm"
)

// countRow is the shape every grouped aggregation is aliased to.
type countRow struct {
	Region   string
	Category string
	Count    int64
}

type querier struct {
	db db.Database
}

func (q querier) conn(ctx context.Context) (*gorm.DB, error) {
	gdb, err := q.db.DB()
	if err != nil {
		return nil, ErrUnavailable(err)
	}
	return gdb.WithContext(ctx), nil
}

func (q querier) rows(ctx context.Context, sql string, args ...any) ([]countRow, error) {
	gdb, err := q.conn(ctx)
	if err != nil {
		return nil, err
	}
	var rows []countRow
	if err := gdb.Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (q querier) scalar(ctx context.Context, sql string, args ...any) (int64, error) {
	gdb, err := q.conn(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := gdb.Raw(sql, args...).Scan(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// valuesBy sums rows per key(region).
func valuesBy(rows []countRow, key func(string) string) map[string]float64 {
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		out[key(r.Region)] += float64(r.Count)
	}
	return out
}

// groupsBy sums rows per key(region) and category, seeding each region with
// the given zero categories.
func groupsBy(rows []countRow, key func(string) string, zero ...string) map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	for _, r := range rows {
		k := key(r.Region)
		g, ok := out[k]
		if !ok {
			g = make(map[string]float64, len(zero))
			for _, z := range zero {
				g[z] = 0
			}
			out[k] = g
		}
		g[r.Category] += float64(r.Count)
	}
	return out
}

func identity(s string) string { return s }

// genderStats folds 男/女 counts into male, female and males per 100 females.
func genderStats(counts map[string]float64) map[string]float64 {
	male, female := counts["男"], counts["女"]
	return map[string]float64{
		"male":   male,
		"female": female,
		"ratio":  snapshot.Ratio(male, female, 100),
	}
}

var ageBuckets = []string{"0-18", "18-35", "35-60", "60+"}

const ageBucketSQL = `CASE
	WHEN TIMESTAMPDIFF(YEAR, birth_date, CURDATE()) < 18 THEN '0-18'
	WHEN TIMESTAMPDIFF(YEAR, birth_date, CURDATE()) BETWEEN 18 AND 34 THEN '18-35'
	WHEN TIMESTAMPDIFF(YEAR, birth_date, CURDATE()) BETWEEN 35 AND 59 THEN '35-60'
	ELSE '60+'
END`
