package snapshot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMetrics() Metrics {
	return Metrics{
		Population: Values(map[string]float64{"广东": 300, "山东": 500, "河南": 400, "西藏": 10}),
		Density:    Values(map[string]float64{"广东": 12.5, "山东": 30.25, "河南": 20}),
		Marriage: Groups(map[string]map[string]float64{
			"山东": {"married_count": 200, "marriage_rate": 40, "total": 500},
			"广东": {"married_count": 120, "marriage_rate": 40, "total": 300},
		}),
		Migration: Flows([]Flow{
			{From: "河南", To: "广东", Count: 50},
			{From: "山东", To: "广东", Count: 20},
			{From: "河南", To: "山东", Count: 7},
		}),
		Gender: Groups(map[string]map[string]float64{
			"山东": {"male": 260, "female": 240, "ratio": 108.33},
		}),
	}
}

func TestDerive(t *testing.T) {
	d := Derive(sampleMetrics(), 2)

	assert.Equal(t, []string{"山东", "河南", "广东", "西藏"}, d.Regions)
	assert.Equal(t, []Ranked{{"山东", 500}, {"河南", 400}}, d.TopRankings[Population])
	assert.Equal(t, []Ranked{{"山东", 30.25}, {"河南", 20}}, d.TopRankings[Density])
	assert.Equal(t, []Ranked{{"广东", 70}, {"山东", 7}}, d.MigrationTopIn)
	assert.Equal(t, []Ranked{{"河南", 57}, {"山东", 20}}, d.MigrationTopOut)
	assert.Equal(t, Summary{
		TotalPopulation: 1210,
		TotalRegions:    4,
		TotalMarried:    320,
		TotalMigrations: 3,
	}, d.Summary)
}

func TestDerive_TotalPopulationOverridesSum(t *testing.T) {
	m := Metrics{
		TotalPopulation: Values(map[string]float64{"山东省": 1234}),
		Population:      Values(map[string]float64{"济南市": 600, "青岛市": 500}),
		Marriage:        Values(map[string]float64{"山东省": 88}),
	}
	d := Derive(m, 0)
	assert.EqualValues(t, 1234, d.Summary.TotalPopulation)
	assert.EqualValues(t, 88, d.Summary.TotalMarried)
	assert.Equal(t, []string{"济南市", "青岛市"}, d.Regions)
}

func TestDerive_NoPopulationFallsBackToUnion(t *testing.T) {
	m := Metrics{
		Gender: Groups(map[string]map[string]float64{"b": {"male": 1}}),
		Age:    Groups(map[string]map[string]float64{"a": {"0-18": 1}}),
	}
	assert.Equal(t, []string{"a", "b"}, Derive(m, 5).Regions)
}

func TestDerive_EmptyMetrics(t *testing.T) {
	d := Derive(Metrics{}, 10)
	assert.Empty(t, d.Regions)
	assert.NotNil(t, d.MigrationTopIn)
	assert.Equal(t, Summary{}, d.Summary)
}

func TestEmpty(t *testing.T) {
	tests := []struct {
		kind Kind
		data any
	}{
		{KindValues, map[string]float64{}},
		{KindGroups, map[string]map[string]float64{}},
		{KindFlows, []Flow{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			m := Empty(tt.kind)
			assert.Equal(t, tt.kind, m.Kind)
			assert.Equal(t, tt.data, m.Data())
			assert.Zero(t, m.Len())
		})
	}
}

func TestSnapshot_Lookup(t *testing.T) {
	s := New(sampleMetrics(), nil, time.Unix(100, 0), 10)

	v, ok := s.Lookup(Population, "山东")
	require.True(t, ok)
	assert.Equal(t, 500.0, v)

	v, ok = s.Lookup(Marriage, "广东")
	require.True(t, ok)
	assert.Equal(t, map[string]float64{"married_count": 120, "marriage_rate": 40, "total": 300}, v)

	v, ok = s.Lookup(Migration, "山东")
	require.True(t, ok)
	assert.Len(t, v, 2)

	_, ok = s.Lookup(Population, "火星")
	assert.False(t, ok)
	_, ok = s.Lookup("unknown", "")
	assert.False(t, ok)

	v, ok = s.Lookup(Density, "")
	require.True(t, ok)
	assert.Len(t, v, 3)

	var nilSnap *Snapshot
	_, ok = nilSnap.Lookup(Population, "")
	assert.False(t, ok)
}

func TestSnapshot_RecordCounts(t *testing.T) {
	s := New(sampleMetrics(), []string{"marriage", "age"}, time.Now(), 10)
	assert.Equal(t, map[string]int{
		Population: 4,
		Density:    3,
		Marriage:   2,
		Migration:  3,
		Gender:     1,
	}, s.RecordCounts())
	assert.Equal(t, []string{"age", "marriage"}, s.Degraded)
	assert.Equal(t, 4, s.RegionCount())
}

func TestSnapshot_JSONRoundTrip(t *testing.T) {
	metrics := sampleMetrics()
	metrics[Age] = Empty(KindGroups)
	metrics[Ethnicity] = Empty(KindFlows)
	s := New(metrics, []string{Age}, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), 10)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var got Snapshot
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, s.Metrics, got.Metrics)
	assert.Equal(t, s.Derived, got.Derived)
	assert.True(t, s.GeneratedAt.Equal(got.GeneratedAt))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 2.35, Round2(2.345))
	assert.Equal(t, -1.01, Round2(-1.005))
	assert.Equal(t, 108.33, Ratio(260, 240, 100))
	assert.Equal(t, 0.0, Ratio(5, 0, 100))
	assert.Equal(t, 33.33, Ratio(1, 3, 100))
}

func TestSnapshot_LookupReturnsCopies(t *testing.T) {
	s := New(sampleMetrics(), nil, time.Unix(100, 0), 10)

	v, ok := s.Lookup(Population, "")
	require.True(t, ok)
	v.(map[string]float64)["山东"] = 1

	v, ok = s.Lookup(Marriage, "广东")
	require.True(t, ok)
	v.(map[string]float64)["total"] = 1

	v, ok = s.Lookup(Marriage, "")
	require.True(t, ok)
	v.(map[string]map[string]float64)["广东"]["married_count"] = 1

	v, ok = s.Lookup(Migration, "")
	require.True(t, ok)
	flows := v.([]Flow)
	require.NotEmpty(t, flows)
	flows[0].Count = -1

	pop, _ := s.Metric(Population)
	assert.Equal(t, 500.0, pop.Values["山东"])
	marriage, _ := s.Metric(Marriage)
	assert.Equal(t, 300.0, marriage.Groups["广东"]["total"])
	assert.Equal(t, 120.0, marriage.Groups["广东"]["married_count"])
	migration, _ := s.Metric(Migration)
	assert.NotEqual(t, int64(-1), migration.Flows[0].Count)
}
