package catalog

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/searchmeta/internal/metrics"
	"github.com/nainya/searchmeta/pkg/metadata"
)

func descriptor(boost float64) metadata.Descriptor {
	return metadata.Descriptor{
		Entity:       "book",
		Type:         "example.com/store.Book",
		Indexed:      true,
		IndexName:    "books",
		IndexManager: "local",
		Boost:        boost,
		Fields: []metadata.FieldDescriptor{
			{Name: "ID", Property: "ID", Store: "yes", Index: true, TermVector: "no", Boost: 1, ID: true, Numeric: "long", Bridge: "long"},
			{Name: "Title", Property: "Title", Store: "no", Index: true, Analyze: true, Norms: true, TermVector: "no", Boost: 1, Bridge: "string"},
		},
	}
}

func openTestCatalog(t *testing.T, opts ...Option) *Catalog {
	t.Helper()
	c, err := Open(context.Background(), "sqlite", ":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPublish_FirstAndRepeat(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	m := metrics.New(prometheus.NewRegistry())
	c := openTestCatalog(t, WithClock(func() time.Time { return now }), WithMetrics(m))
	ctx := context.Background()

	first, changed, err := c.Publish(ctx, descriptor(1))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(1), first.Seq)
	assert.NotEmpty(t, first.ID)
	assert.Len(t, first.Checksum, 64)
	assert.Equal(t, now.Truncate(time.Millisecond), first.PublishedAt)

	again, changed, err := c.Publish(ctx, descriptor(1))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.PublishedAt, again.PublishedAt)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CatalogPublishesTotal.WithLabelValues(ResultChanged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CatalogPublishesTotal.WithLabelValues(ResultUnchanged)))
}

func TestPublish_ChangeAddsSnapshot(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	first, _, err := c.Publish(ctx, descriptor(1))
	require.NoError(t, err)
	second, changed, err := c.Publish(ctx, descriptor(2))
	require.NoError(t, err)

	assert.True(t, changed)
	assert.Equal(t, int64(2), second.Seq)
	assert.NotEqual(t, first.Checksum, second.Checksum)

	latest, err := c.Latest(ctx, "book", "local")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, 2.0, latest.Descriptor.Boost)

	sum, err := latest.Descriptor.Checksum()
	require.NoError(t, err)
	assert.Equal(t, second.Checksum, sum, "stored descriptor must round-trip to the same checksum")
}

func TestPublish_KeyedByIndexManager(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	local := descriptor(1)
	es := descriptor(1)
	es.IndexManager = "elasticsearch"

	_, changed, err := c.Publish(ctx, local)
	require.NoError(t, err)
	assert.True(t, changed)
	snap, changed, err := c.Publish(ctx, es)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(1), snap.Seq)
}

func TestHistory_NewestFirstWithLimit(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	for _, boost := range []float64{1, 2, 3} {
		_, _, err := c.Publish(ctx, descriptor(boost))
		require.NoError(t, err)
	}

	all, err := c.History(ctx, "book", "local", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{all[0].Seq, all[1].Seq, all[2].Seq})

	limited, err := c.History(ctx, "book", "local", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := c.History(ctx, "author", "local", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLatest_NotFound(t *testing.T) {
	c := openTestCatalog(t)

	_, err := c.Latest(context.Background(), "ghost", "local")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y = ?"
	assert.Equal(t, q, rebind(SQLite, q))
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", rebind(Postgres, q))
}

func newMockCatalog(t *testing.T, opts ...Option) (*Catalog, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return newCatalog(db, Postgres, opts...), mock
}

var (
	selectRe = `(?s)^SELECT\s+id,.*FROM\s+metadata_snapshots\s+WHERE\s+entity\s*=\s*\$1\s+AND\s+index_manager\s*=\s*\$2.*LIMIT 1$`
	insertRe = `(?s)^INSERT\s+INTO\s+metadata_snapshots.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)$`
)

func TestPublish_BeginError(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c, mock := newMockCatalog(t, WithMetrics(m))

	mock.ExpectBegin().WillReturnError(errors.New("db down"))

	_, _, err := c.Publish(context.Background(), descriptor(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CatalogPublishesTotal.WithLabelValues(ResultError)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish_SelectErrorRollsBack(t *testing.T) {
	c, mock := newMockCatalog(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectRe).WithArgs("book", "local").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, changed, err := c.Publish(context.Background(), descriptor(1))
	require.Error(t, err)
	assert.False(t, changed)
	assert.Contains(t, err.Error(), "scan snapshot")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish_InsertErrorRollsBack(t *testing.T) {
	c, mock := newMockCatalog(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectRe).WithArgs("book", "local").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(insertRe).WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	_, _, err := c.Publish(context.Background(), descriptor(1))
	require.Error(t, err)
	assert.True(t, regexp.MustCompile(`insert snapshot book: .*constraint`).MatchString(err.Error()), err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish_CommitsNewSnapshot(t *testing.T) {
	c, mock := newMockCatalog(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectRe).WithArgs("book", "local").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(insertRe).
		WithArgs(sqlmock.AnyArg(), "book", "local", int64(1), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	snap, changed, err := c.Publish(context.Background(), descriptor(1))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(1), snap.Seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory_QueryError(t *testing.T) {
	c, mock := newMockCatalog(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*ORDER BY seq DESC LIMIT \$3$`).
		WithArgs("book", "local", 5).
		WillReturnError(errors.New("timeout"))

	_, err := c.History(context.Background(), "book", "local", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query snapshots of book")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_MigrationError(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUp
	gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return errors.New("migration failed")
	}
	defer func() { gooseUp = orig }()

	_, err = New(context.Background(), db, Postgres)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate catalog: migration failed")
}
