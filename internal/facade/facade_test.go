package facade

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmelo/painel/internal/asyncstate"
	"github.com/dmelo/painel/internal/cache"
	"github.com/dmelo/painel/internal/database"
)

type task struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
	Owner string `json:"user_id"`
}

var alice = database.Principal{ID: "alice", Email: "alice@example.com"}

// fakeClient counts backend calls and serves canned rows, so tests can
// assert exactly how many round trips the facade makes.
type fakeClient struct {
	mu        sync.Mutex
	selects   int
	inserts   int
	rows      []database.Record
	selectErr error
	failFirst int
	delay     time.Duration
	nextID    int
}

func (f *fakeClient) Select(ctx context.Context, table string, opts database.SelectOptions) ([]database.Record, error) {
	f.mu.Lock()
	f.selects++
	err := f.selectErr
	if err == nil && f.selects <= f.failFirst {
		err = database.NewError(database.KindConnection, "backend unreachable")
	}
	rows := database.CloneRecords(f.rows)
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	return rows, nil
}

func (f *fakeClient) Insert(ctx context.Context, table string, records []database.Record, opts database.InsertOptions) ([]database.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	stored := make([]database.Record, 0, len(records))
	for _, rec := range records {
		out := database.CloneRecord(rec)
		if database.RecordID(out) == "" {
			f.nextID++
			out[database.IDColumn] = fmt.Sprintf("t%d", f.nextID)
		}
		f.rows = append(f.rows, out)
		stored = append(stored, out)
	}
	return stored, nil
}

func (f *fakeClient) Update(ctx context.Context, table string, changes database.Record, filters []database.Filter, opts database.UpdateOptions) ([]database.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := idFilter(filters)
	for i, row := range f.rows {
		if database.RecordID(row) == id {
			next := database.CloneRecord(row)
			for col, v := range changes {
				next[col] = v
			}
			f.rows[i] = next
			return []database.Record{database.CloneRecord(next)}, nil
		}
	}
	return nil, nil
}

func (f *fakeClient) Delete(ctx context.Context, table string, filters []database.Filter, opts database.DeleteOptions) ([]database.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := idFilter(filters)
	kept := f.rows[:0:0]
	var removed []database.Record
	for _, row := range f.rows {
		if database.RecordID(row) == id {
			removed = append(removed, row)
			continue
		}
		kept = append(kept, row)
	}
	f.rows = kept
	return removed, nil
}

func (f *fakeClient) CurrentUser(ctx context.Context) (*database.Principal, error) {
	p := alice
	return &p, nil
}

func (f *fakeClient) Connected() bool { return true }
func (f *fakeClient) Close() error    { return nil }

func (f *fakeClient) selectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selects
}

func (f *fakeClient) insertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserts
}

func idFilter(filters []database.Filter) (string, bool) {
	for _, flt := range filters {
		if flt.Column == database.IDColumn && flt.Operator == database.OpEq {
			s, ok := flt.Value.(string)
			return s, ok
		}
	}
	return "", false
}

func newTestCollection(t *testing.T, client database.Client, opts ...func(*Config)) *Collection[task] {
	t.Helper()
	cfg := Config{Client: client, Cache: cache.New(cache.WithTTL(time.Minute))}
	for _, opt := range opts {
		opt(&cfg)
	}
	coll, err := NewCollection[task]("tarefas", cfg)
	require.NoError(t, err)
	return coll
}

func seedRows() []database.Record {
	return []database.Record{
		{"id": "t1", "title": "estudar edital", "done": false, "user_id": "alice"},
		{"id": "t2", "title": "revisar portugues", "done": true, "user_id": "alice"},
	}
}

func TestNewCollection_Validation(t *testing.T) {
	_, err := NewCollection[task]("", Config{Client: &fakeClient{}})
	require.Error(t, err)
	assert.Equal(t, database.KindValidation, database.KindOf(err))

	_, err = NewCollection[task]("tarefas", Config{})
	require.Error(t, err)
	assert.Equal(t, database.KindValidation, database.KindOf(err))
}

func TestFindAll_CacheFirst(t *testing.T) {
	client := &fakeClient{rows: seedRows()}
	coll := newTestCollection(t, client)

	first, err := coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 1, client.selectCount())

	// Second identical read is served from cache.
	second, err := coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.selectCount())

	data, ok := coll.State().Data()
	require.True(t, ok)
	assert.Equal(t, first, data)
	assert.True(t, coll.State().IsSuccess())
}

func TestFindAll_ConcurrentCallersShareOneFetch(t *testing.T) {
	client := &fakeClient{rows: seedRows(), delay: 30 * time.Millisecond}
	coll := newTestCollection(t, client)

	const callers = 8
	results := make([][]task, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = coll.FindAll(context.Background(), alice, QueryOptions{})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, client.selectCount())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
}

func TestFindAll_DistinctSignaturesFetchSeparately(t *testing.T) {
	client := &fakeClient{rows: seedRows()}
	coll := newTestCollection(t, client)

	_, err := coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)
	_, err = coll.FindAll(context.Background(), alice, QueryOptions{
		Filters: database.NewFilter().Eq("done", true).Build(),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, client.selectCount())
}

func TestFindAll_PrincipalsDoNotShareCache(t *testing.T) {
	client := &fakeClient{rows: seedRows()}
	coll := newTestCollection(t, client)

	_, err := coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)
	_, err = coll.FindAll(context.Background(), database.Principal{ID: "bruno"}, QueryOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, client.selectCount())
}

func TestFindAll_RequiresPrincipal(t *testing.T) {
	coll := newTestCollection(t, &fakeClient{})
	_, err := coll.FindAll(context.Background(), database.Principal{}, QueryOptions{})
	require.Error(t, err)
	assert.Equal(t, database.KindAuth, database.KindOf(err))
	assert.ErrorIs(t, err, database.ErrNoPrincipal)
}

func TestFindAll_FetchFailureKeepsPreviousData(t *testing.T) {
	client := &fakeClient{rows: seedRows()}
	store := cache.New(cache.WithTTL(time.Minute))
	coll := newTestCollection(t, client, func(cfg *Config) { cfg.Cache = store })

	first, err := coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)

	// Force the next read past the cache and make the backend fail.
	store.InvalidateAll()
	client.mu.Lock()
	client.selectErr = database.NewError(database.KindConnection, "backend unreachable")
	client.mu.Unlock()

	_, err = coll.FindAll(context.Background(), alice, QueryOptions{})
	require.Error(t, err)
	assert.Equal(t, database.KindConnection, database.KindOf(err))

	// The container reports the failure but retains the last good value.
	assert.True(t, coll.State().IsError())
	data, ok := coll.State().Data()
	require.True(t, ok)
	assert.Equal(t, first, data)
}

func TestFindByID(t *testing.T) {
	client := &fakeClient{rows: seedRows()}
	coll := newTestCollection(t, client)

	t.Run("Found", func(t *testing.T) {
		got, err := coll.FindByID(context.Background(), alice, "t2")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "revisar portugues", got.Title)
	})

	t.Run("Missing", func(t *testing.T) {
		got, err := coll.FindByID(context.Background(), alice, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("EmptyID", func(t *testing.T) {
		_, err := coll.FindByID(context.Background(), alice, "")
		require.Error(t, err)
		assert.Equal(t, database.KindValidation, database.KindOf(err))
	})
}

func TestCreate_PatchesCachedReads(t *testing.T) {
	client := &fakeClient{rows: seedRows()}
	coll := newTestCollection(t, client)

	_, err := coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, client.selectCount())

	created, err := coll.Create(context.Background(), alice, task{Title: "simulado"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "alice", created.Owner)

	// The follow-up read is served from the patched cache: the new record is
	// first and no backend select happened.
	after, err := coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, after, 3)
	assert.Equal(t, created.ID, after[0].ID)
	assert.Equal(t, 1, client.selectCount())
}

func TestCreate_InvalidatesConstrainedReads(t *testing.T) {
	client := &fakeClient{rows: seedRows()}
	coll := newTestCollection(t, client)

	limited := QueryOptions{Limit: 1}
	first, err := coll.FindAll(context.Background(), alice, limited)
	require.NoError(t, err)
	require.Len(t, first, 1)

	filtered := QueryOptions{Filters: database.NewFilter().Eq("done", true).Build()}
	_, err = coll.FindAll(context.Background(), alice, filtered)
	require.NoError(t, err)
	require.Equal(t, 2, client.selectCount())

	_, err = coll.Create(context.Background(), alice, task{Title: "simulado"})
	require.NoError(t, err)

	// A limited read cannot absorb the new record locally: prepending would
	// serve more rows than the limit. It refetches and stays at one row.
	after, err := coll.FindAll(context.Background(), alice, limited)
	require.NoError(t, err)
	assert.Len(t, after, 1)
	assert.Equal(t, 3, client.selectCount())

	// The filtered read refetches too, the new record may not match it.
	_, err = coll.FindAll(context.Background(), alice, filtered)
	require.NoError(t, err)
	assert.Equal(t, 4, client.selectCount())
}

func TestUpdateByID_InvalidatesFilteredReads(t *testing.T) {
	client := &fakeClient{rows: seedRows()}
	coll := newTestCollection(t, client)

	pending := QueryOptions{Filters: database.NewFilter().Eq("done", false).Build()}
	_, err := coll.FindAll(context.Background(), alice, pending)
	require.NoError(t, err)
	require.Equal(t, 1, client.selectCount())

	// Marking t1 done moves it out of the pending filter, so the cached
	// filtered read cannot be patched in place and must refetch.
	_, err = coll.UpdateByID(context.Background(), alice, "t1", database.Record{"done": true})
	require.NoError(t, err)

	_, err = coll.FindAll(context.Background(), alice, pending)
	require.NoError(t, err)
	assert.Equal(t, 2, client.selectCount())
}

func TestCreate_UpdatesState(t *testing.T) {
	client := &fakeClient{rows: seedRows()}
	coll := newTestCollection(t, client)

	_, err := coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)

	created, err := coll.Create(context.Background(), alice, task{Title: "simulado"})
	require.NoError(t, err)

	data, ok := coll.State().Data()
	require.True(t, ok)
	require.Len(t, data, 3)
	assert.Equal(t, created.ID, data[0].ID)
}

func TestCreateMany_ChunksAndInvalidates(t *testing.T) {
	client := &fakeClient{}
	coll := newTestCollection(t, client, func(cfg *Config) { cfg.BatchSize = 2 })

	_, err := coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, client.selectCount())

	items := []task{
		{Title: "a"}, {Title: "b"}, {Title: "c"}, {Title: "d"}, {Title: "e"},
	}
	created, err := coll.CreateMany(context.Background(), alice, items)
	require.NoError(t, err)
	require.Len(t, created, 5)
	assert.Equal(t, 3, client.insertCount())

	// Bulk writes invalidate instead of patching, so the next read hits the
	// backend again.
	after, err := coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, after, 5)
	assert.Equal(t, 2, client.selectCount())
}

func TestUpdateByID_PatchesCachedReads(t *testing.T) {
	client := &fakeClient{rows: seedRows()}
	coll := newTestCollection(t, client)

	_, err := coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)

	updated, err := coll.UpdateByID(context.Background(), alice, "t1", database.Record{"done": true})
	require.NoError(t, err)
	assert.True(t, updated.Done)

	after, err := coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, after, 2)
	for _, item := range after {
		if item.ID == "t1" {
			assert.True(t, item.Done)
		}
	}
	assert.Equal(t, 1, client.selectCount())
}

func TestUpdateByID_MissingRecord(t *testing.T) {
	coll := newTestCollection(t, &fakeClient{rows: seedRows()})
	_, err := coll.UpdateByID(context.Background(), alice, "nope", database.Record{"done": true})
	require.Error(t, err)
	assert.Equal(t, database.KindNotFound, database.KindOf(err))
}

func TestUpdateByID_RequiresChanges(t *testing.T) {
	coll := newTestCollection(t, &fakeClient{rows: seedRows()})
	_, err := coll.UpdateByID(context.Background(), alice, "t1", nil)
	require.Error(t, err)
	assert.Equal(t, database.KindValidation, database.KindOf(err))
}

func TestDeleteByID_PatchesCachedReads(t *testing.T) {
	client := &fakeClient{rows: seedRows()}
	coll := newTestCollection(t, client)

	_, err := coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)

	removed, err := coll.DeleteByID(context.Background(), alice, "t1")
	require.NoError(t, err)
	assert.True(t, removed)

	after, err := coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "t2", after[0].ID)
	assert.Equal(t, 1, client.selectCount())

	data, ok := coll.State().Data()
	require.True(t, ok)
	assert.Len(t, data, 1)
}

func TestDeleteByID_MissingRecord(t *testing.T) {
	coll := newTestCollection(t, &fakeClient{rows: seedRows()})
	removed, err := coll.DeleteByID(context.Background(), alice, "nope")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestInvalidate_DropsOnlyPrincipalEntries(t *testing.T) {
	client := &fakeClient{rows: seedRows()}
	store := cache.New(cache.WithTTL(time.Minute))
	coll := newTestCollection(t, client, func(cfg *Config) { cfg.Cache = store })

	bruno := database.Principal{ID: "bruno"}
	_, err := coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)
	_, err = coll.FindAll(context.Background(), bruno, QueryOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, client.selectCount())

	coll.Invalidate(alice)

	_, err = coll.FindAll(context.Background(), bruno, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, client.selectCount())

	_, err = coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, client.selectCount())
}

func TestClearCache(t *testing.T) {
	client := &fakeClient{rows: seedRows()}
	coll := newTestCollection(t, client)

	_, err := coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, client.selectCount())

	coll.ClearCache()
	assert.True(t, coll.State().IsIdle())
	_, ok := coll.State().Data()
	assert.False(t, ok)

	_, err = coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, client.selectCount())
}

func TestFindAll_RetriesTransientFailures(t *testing.T) {
	client := &fakeClient{rows: seedRows(), failFirst: 2}
	coll := newTestCollection(t, client, func(cfg *Config) {
		cfg.Retry = asyncstate.RetryPolicy{Count: 2, Delay: time.Millisecond}
	})

	items, err := coll.FindAll(context.Background(), alice, QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 3, client.selectCount())
	assert.True(t, coll.State().IsSuccess())
}
