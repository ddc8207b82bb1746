package objectstore

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/lakehouse/internal/errs"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	require.NoError(t, store.PutObject(ctx, "lake", "raw/users/raw_users_B1.json", []byte(`{"a":1}`), "application/x-ndjson"))
	require.NoError(t, store.PutObject(ctx, "lake", "raw/events/raw_events_B1.json", []byte(`{"b":2}`), ""))
	require.NoError(t, store.PutObject(ctx, "lake", "reports/index.html", []byte("<html>"), "text/html"))

	data, err := store.GetObject(ctx, "lake", "raw/users/raw_users_B1.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	keys, err := store.ListPrefix(ctx, "lake", "raw/")
	require.NoError(t, err)
	assert.Equal(t, []string{"raw/events/raw_events_B1.json", "raw/users/raw_users_B1.json"}, keys)
}

func TestLocalStoreMissingObject(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	_, err := store.GetObject(context.Background(), "lake", "nope.json")
	require.Error(t, err)
	assert.Equal(t, errs.CodeObjectStore, errs.CodeOf(err))
	assert.False(t, errs.IsRetryable(err))
}

func TestLocalStoreKeyCannotEscapeBucket(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewLocalStore(root)

	require.NoError(t, store.PutObject(ctx, "lake", "../../escape.txt", []byte("x"), ""))
	keys, err := store.ListPrefix(ctx, "lake", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"escape.txt"}, keys)
}

func TestLocalStoreRequiresBucket(t *testing.T) {
	err := NewLocalStore(t.TempDir()).PutObject(context.Background(), "", "k", nil, "")
	assert.Equal(t, errs.CodeInvalidInput, errs.CodeOf(err))
}

func TestClassify(t *testing.T) {
	missing := classify(minio.ErrorResponse{Code: "NoSuchBucket", Message: "The specified bucket does not exist"})
	assert.Equal(t, errs.CodeObjectStore, missing.Code)
	assert.False(t, missing.Retryable)

	transient := classify(errors.New("dial tcp: connection refused"))
	assert.Equal(t, errs.CodeObjectStore, transient.Code)
	assert.True(t, transient.Retryable)
}

func TestURI(t *testing.T) {
	assert.Equal(t, "s3://lake/reports/index.html", URI("lake", "/reports/index.html"))
}
