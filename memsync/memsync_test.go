package memsync

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dailyyoga/regstats/cron"
	"github.com/dailyyoga/regstats/db"
	"github.com/dailyyoga/regstats/logger"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (db.Database, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	gdb, err := gorm.Open(gormmysql.New(gormmysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}),
		&gorm.Config{Logger: glogger.Discard})
	require.NoError(t, err)
	return db.Wrap(gdb), mock
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

func testConfig(tables ...Mapping) *Config {
	return &Config{
		HeapTableSize: 1024,
		Tables:        tables,
		Pause:         time.Millisecond,
	}
}

func expectHeapLimits(mock sqlmock.Sqlmock) {
	mock.ExpectExec(q("SET GLOBAL max_heap_table_size = ?")).WithArgs(int64(1024)).
		WillReturnError(&mysql.MySQLError{Number: errSpecificAccessDenied, Message: "Access denied; you need the SUPER privilege"})
	mock.ExpectExec(q("SET SESSION max_heap_table_size = ?")).WithArgs(int64(1024)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("SET SESSION tmp_table_size = ?")).WithArgs(int64(1024)).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func expectCopy(mock sqlmock.Sqlmock, source, target string, rows int64) {
	mock.ExpectExec(q("ALTER TABLE `" + target + "` ENGINE=MEMORY")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("TRUNCATE TABLE `" + target + "`")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT COUNT(*) FROM `" + source + "`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(rows))
	if rows == 0 {
		return
	}
	mock.ExpectExec(q("INSERT INTO `" + target + "` SELECT * FROM `" + source + "`")).
		WillReturnResult(sqlmock.NewResult(0, rows))
}

func expectMetadata(mock sqlmock.Sqlmock, table string, records int64, status string) {
	mock.ExpectExec(q("UPDATE `memory_sync_metadata` SET last_sync_time = ?")).
		WithArgs(sqlmock.AnyArg(), records, sqlmock.AnyArg(), status, sqlmock.AnyArg(), table).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestConfig_Validate(t *testing.T) {
	cfg := (&Config{}).MergeDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultTables(), cfg.Tables)
	assert.Equal(t, "@every 30m", cfg.Schedule)
	assert.EqualValues(t, 20737418240, cfg.HeapTableSize)

	tests := []struct {
		name   string
		tables []Mapping
		errMsg string
	}{
		{"injection", []Mapping{{Source: "population; DROP TABLE x", Target: "p_memory"}}, "plain identifier"},
		{"self", []Mapping{{Source: "population", Target: "population"}}, "onto itself"},
		{"duplicate", []Mapping{{Source: "a", Target: "t"}, {Source: "b", Target: "t"}}, "listed twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := (&Config{Tables: tt.tables}).MergeDefaults()
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestSyncAll_Success(t *testing.T) {
	database, mock := newMockDB(t)
	s, err := New(database, testConfig(
		Mapping{Source: "population", Target: "population_memory"},
		Mapping{Source: "marriage_info", Target: "marriage_info_memory"},
	), logger.NewNop(), nil)
	require.NoError(t, err)

	expectHeapLimits(mock)
	expectCopy(mock, "population", "population_memory", 3)
	mock.ExpectQuery(q("SELECT COUNT(*) FROM `population_memory`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	expectMetadata(mock, "population_memory", 3, StatusSuccess)
	expectCopy(mock, "marriage_info", "marriage_info_memory", 0)
	expectMetadata(mock, "marriage_info_memory", 0, StatusSuccess)

	summary, err := s.SyncAll(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.True(t, summary.OK())
	assert.NoError(t, summary.Err())
	assert.Equal(t, 2, summary.Succeeded())
	assert.EqualValues(t, 3, summary.Records())
}

func TestSyncAll_CountMismatchContinues(t *testing.T) {
	database, mock := newMockDB(t)
	s, err := New(database, testConfig(
		Mapping{Source: "population", Target: "population_memory"},
		Mapping{Source: "population_deceased", Target: "population_deceased_memory"},
	), logger.NewNop(), nil)
	require.NoError(t, err)

	expectHeapLimits(mock)
	expectCopy(mock, "population", "population_memory", 5)
	mock.ExpectQuery(q("SELECT COUNT(*) FROM `population_memory`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	expectMetadata(mock, "population_memory", 4, StatusFailed)
	mock.ExpectExec(q("ALTER TABLE `population_deceased_memory` ENGINE=MEMORY")).
		WillReturnError(errors.New("The table is full"))
	expectMetadata(mock, "population_deceased_memory", 0, StatusFailed)

	summary, err := s.SyncAll(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, summary.Results, 2)
	assert.False(t, summary.Results[0].Success)
	assert.ErrorContains(t, summary.Results[0].Err, "holds 4 rows after copying 5")
	assert.ErrorContains(t, summary.Results[1].Err, "alter engine")
	assert.EqualError(t, summary.Err(), "memsync: 2 of 2 tables failed to sync")
}

func TestTasks_ReportFailsChainAndSkipsHooks(t *testing.T) {
	database, mock := newMockDB(t)
	s, err := New(database, testConfig(Mapping{Source: "population", Target: "population_memory"}), logger.NewNop(), nil)
	require.NoError(t, err)

	expectHeapLimits(mock)
	mock.ExpectExec(q("ALTER TABLE `population_memory` ENGINE=MEMORY")).WillReturnError(errors.New("denied"))
	expectMetadata(mock, "population_memory", 0, StatusFailed)

	c := cron.NewCron(logger.NewNop())
	defer c.Close()
	called := false
	require.NoError(t, s.Register(c, func(context.Context, *Summary) { called = true }))

	err = c.RunChain(context.Background(), ChainName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 tables failed")
	assert.False(t, called)
}

func TestTasks_HooksReceiveSummary(t *testing.T) {
	database, mock := newMockDB(t)
	s, err := New(database, testConfig(Mapping{Source: "population", Target: "population_memory"}), logger.NewNop(), nil)
	require.NoError(t, err)

	expectHeapLimits(mock)
	expectCopy(mock, "population", "population_memory", 2)
	mock.ExpectQuery(q("SELECT COUNT(*) FROM `population_memory`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	expectMetadata(mock, "population_memory", 2, StatusSuccess)

	c := cron.NewCron(logger.NewNop())
	defer c.Close()
	var got *Summary
	require.NoError(t, s.Register(c, func(_ context.Context, summary *Summary) { got = summary }))

	require.NoError(t, c.RunChain(context.Background(), ChainName))
	require.NotNil(t, got)
	assert.EqualValues(t, 2, got.Records())
}

func TestStats(t *testing.T) {
	database, mock := newMockDB(t)
	s, err := New(database, nil, logger.NewNop(), nil)
	require.NoError(t, err)

	mock.ExpectQuery(q("FROM information_schema.tables")).
		WillReturnRows(sqlmock.NewRows([]string{"table", "engine", "rows", "data_length", "index_length"}).
			AddRow("population_memory", "MEMORY", 1000, 2048, 512))

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, TableStats{Table: "population_memory", Engine: "MEMORY", Rows: 1000, DataLength: 2048, IndexLength: 512}, stats[0])
}

func TestMetadata(t *testing.T) {
	database, mock := newMockDB(t)
	s, err := New(database, nil, logger.NewNop(), nil)
	require.NoError(t, err)

	synced := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	mock.ExpectQuery(q("FROM `memory_sync_metadata` ORDER BY table_name")).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "last_sync_time", "record_count", "sync_duration_seconds", "sync_status", "error_message"}).
			AddRow("marriage_info_memory", nil, 0, 0, "failed", "table is full").
			AddRow("population_memory", synced, 1000, 1.5, "success", nil))

	rows, err := s.Metadata(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "marriage_info_memory", rows[0].Table)
	assert.Nil(t, rows[0].LastSyncTime)
	assert.Equal(t, StatusFailed, rows[0].SyncStatus)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Equal(t, "table is full", *rows[0].ErrorMessage)

	assert.Equal(t, "population_memory", rows[1].Table)
	require.NotNil(t, rows[1].LastSyncTime)
	assert.True(t, rows[1].LastSyncTime.Equal(synced))
	assert.EqualValues(t, 1000, rows[1].RecordCount)
	assert.Equal(t, 1.5, rows[1].SyncDurationSeconds)
	assert.Nil(t, rows[1].ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsAccessDenied(t *testing.T) {
	assert.True(t, isAccessDenied(&mysql.MySQLError{Number: errAccessDenied}))
	assert.False(t, isAccessDenied(&mysql.MySQLError{Number: 1064}))
	assert.False(t, isAccessDenied(errors.New("Access denied")))
}
