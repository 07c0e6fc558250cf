package catalogcache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-invoice/internal/catalog"
	"github.com/odyssey-erp/odyssey-invoice/internal/invoice"
)

type countingSource struct {
	calls   atomic.Int32
	records []catalog.ProductRecord
	err     error
}

func (s *countingSource) Products(ctx context.Context) ([]catalog.ProductRecord, error) {
	s.calls.Add(1)
	return s.records, s.err
}

type okSink struct{}

func (okSink) Submit(ctx context.Context, sub invoice.Submission) (invoice.StoredInvoice, error) {
	return invoice.StoredInvoice{ID: "inv"}, nil
}

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client, *countingSource) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	price := 60.0
	src := &countingSource{records: []catalog.ProductRecord{{ID: "p1", Name: "Rice", Unit: "kg", Price: &price}}}
	return mr, client, src
}

func TestProductsReadThrough(t *testing.T) {
	mr, client, src := setup(t)
	cache := New(client, src, time.Minute, nil)
	ctx := context.Background()

	first, err := cache.Products(ctx)
	require.NoError(t, err)
	second, err := cache.Products(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.True(t, mr.Exists("catalog:products:1"))
	assert.Equal(t, 60.0, *second[0].Price)

	mr.FastForward(2 * time.Minute)
	_, err = cache.Products(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestSubmitBumpsVersion(t *testing.T) {
	mr, client, src := setup(t)
	cache := New(client, src, time.Minute, nil)
	ctx := context.Background()

	_, err := cache.Products(ctx)
	require.NoError(t, err)

	_, err = cache.Sink(okSink{}).Submit(ctx, invoice.Submission{})
	require.NoError(t, err)

	ver, err := mr.Get("catalog:version")
	require.NoError(t, err)
	assert.Equal(t, "2", ver)

	_, err = cache.Products(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestRedisDownFallsBackToSource(t *testing.T) {
	mr, client, src := setup(t)
	cache := New(client, src, time.Minute, nil)
	mr.Close()

	records, err := cache.Products(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSourceErrorIsNotCached(t *testing.T) {
	mr, client, src := setup(t)
	src.err = errors.New("backend down")
	cache := New(client, src, time.Minute, nil)

	_, err := cache.Products(context.Background())
	assert.Error(t, err)
	assert.False(t, mr.Exists("catalog:products:1"))
}

func TestWarmRefreshesSnapshot(t *testing.T) {
	mr, client, src := setup(t)
	cache := New(client, src, time.Minute, nil)
	ctx := context.Background()

	_, err := cache.Products(ctx)
	require.NoError(t, err)
	records, err := cache.Warm(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(2), src.calls.Load())
	assert.True(t, mr.Exists("catalog:products:1"))

	records, err = New(nil, src, time.Minute, nil).Warm(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
