package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/rewear/internal/db"
)

func TestJWTSecretIsGeneratedOnce(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, ok, err := GetSetting(ctx, database, SettingJWTSecret)
	require.NoError(t, err)
	assert.False(t, ok)

	first, err := GetJWTSecret(ctx, database)
	require.NoError(t, err)
	assert.Len(t, first, 64)

	second, err := GetJWTSecret(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEnsureSettingKeepsFirstValue(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	v, err := EnsureSetting(ctx, database, "motd", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	v, err = EnsureSetting(ctx, database, "motd", "ignored")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	stored, ok, err := GetSetting(ctx, database, "motd")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", stored)
}
