package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/product-catalog/api"
	"github.com/Skryldev/product-catalog/db"
	"github.com/Skryldev/product-catalog/repo"
)

func TestEnsureSchema_UnreachableDatabaseKeepsServing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not-yet")
	database, err := db.OpenURL("", filepath.Join(dir, "products.db"), db.Config{LazyConnect: true})
	require.NoError(t, err, "startup must survive an unreachable database")
	defer database.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ready := api.NewReadiness()
	router := api.NewRouter(api.Options{
		Repo:      repo.NewProductRepo(database),
		Readiness: ready,
		Logger:    logger,
		CORS:      api.DefaultCORSOptions(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ensureSchema(ctx, database, ready, logger, 50*time.Millisecond)

	require.Eventually(t, func() bool {
		_, reason := ready.Ready()
		return reason != "schema not initialised"
	}, 2*time.Second, 10*time.Millisecond)

	ok, reason := ready.Ready()
	assert.False(t, ok)
	assert.Contains(t, reason, "connection failed")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// The database becomes reachable; the retry loop picks it up.
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.Eventually(t, func() bool {
		ok, _ := ready.Ready()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
