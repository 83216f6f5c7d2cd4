package casebase

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_AppendReadAll(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "cases.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	recs := []Record{
		{"case_1", `{"brand":"Honda"}`, "false", "[]", "0", `[{"model":"CB150R"}]`, "false", "2026-01-01 00:00:00"},
		{"case_2", `{"brand":"Yamaha"}`, "true", "[]", "1", `[{"model":"XSR155"}]`, "true", "2026-01-02 00:00:00"},
	}
	for _, rec := range recs {
		require.NoError(t, store.Append(ctx, rec))
	}

	got, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, recs[0], got[0])
	assert.Equal(t, recs[1], got[1])
}

func TestSQLiteStore_RejectsWrongFieldCount(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "cases.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	err = store.Append(ctx, Record{"too", "short"})
	assert.Error(t, err)
}
