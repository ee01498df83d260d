package polymind

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T, handler http.Handler, opts *ModelCatalogOptions) *ModelCatalog {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(WithBaseURL(srv.URL), WithLogger(discardLogger()))
	if opts == nil {
		opts = &ModelCatalogOptions{}
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	return NewModelCatalog(client, opts)
}

func TestModelCatalog(t *testing.T) {
	t.Run("CachesWithinTTL", func(t *testing.T) {
		var requests atomic.Int64
		catalog := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			require.Equal(t, "/webapp/models", r.URL.Path)
			json.NewEncoder(w).Encode([]ModelConfig{{ID: "gpt-4o", Accessible: true}})
		}), nil)

		ctx := context.Background()
		first, err := catalog.Models(ctx)
		require.NoError(t, err)
		second, err := catalog.Models(ctx)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, int64(1), requests.Load())
	})

	t.Run("RefetchesAfterTTL", func(t *testing.T) {
		var requests atomic.Int64
		now := time.Now()
		catalog := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			json.NewEncoder(w).Encode([]ModelConfig{{ID: "gpt-4o"}})
		}), &ModelCatalogOptions{
			TTL: time.Minute,
			Now: func() time.Time { return now },
		})

		ctx := context.Background()
		_, err := catalog.Models(ctx)
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		_, err = catalog.Models(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), requests.Load())
	})

	t.Run("StaleFallbackOnFetchFailure", func(t *testing.T) {
		var fail atomic.Bool
		now := time.Now()
		catalog := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fail.Load() {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode([]ModelConfig{{ID: "gpt-4o"}})
		}), &ModelCatalogOptions{
			TTL: time.Minute,
			Now: func() time.Time { return now },
		})

		ctx := context.Background()
		_, err := catalog.Models(ctx)
		require.NoError(t, err)

		fail.Store(true)
		now = now.Add(2 * time.Minute)
		models, err := catalog.Models(ctx)
		require.NoError(t, err)
		require.Len(t, models, 1)
		assert.Equal(t, "gpt-4o", models[0].ID)
	})

	t.Run("FirstFetchFailureIsAnError", func(t *testing.T) {
		catalog := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}), nil)

		_, err := catalog.Models(context.Background())
		assert.Error(t, err)
	})

	t.Run("InvalidateForcesRefetch", func(t *testing.T) {
		var requests atomic.Int64
		catalog := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			json.NewEncoder(w).Encode([]ModelConfig{{ID: "gpt-4o"}})
		}), nil)

		ctx := context.Background()
		_, err := catalog.Models(ctx)
		require.NoError(t, err)
		catalog.Invalidate()
		_, err = catalog.Models(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), requests.Load())
	})

	t.Run("ModelInfo", func(t *testing.T) {
		catalog := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([]ModelConfig{{ID: "gpt-4o", Name: "GPT-4o"}})
		}), nil)

		assert.Nil(t, catalog.ModelInfo("gpt-4o"), "no fetch before Models is called")

		_, err := catalog.Models(context.Background())
		require.NoError(t, err)

		info := catalog.ModelInfo("gpt-4o")
		require.NotNil(t, info)
		assert.Equal(t, "GPT-4o", info.Name)
		assert.Nil(t, catalog.ModelInfo("unknown"))
	})

	t.Run("ModelsWithAccess", func(t *testing.T) {
		catalog := newTestCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([]ModelConfig{
				{ID: "free", Accessible: true},
				{ID: "pro", Accessible: false},
			})
		}), nil)

		accessible, locked, err := catalog.ModelsWithAccess(context.Background())
		require.NoError(t, err)
		require.Len(t, accessible, 1)
		require.Len(t, locked, 1)
		assert.Equal(t, "free", accessible[0].ID)
		assert.Equal(t, "pro", locked[0].ID)
	})
}
