//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whr-oam/coco-cli/internal/config"
	"github.com/whr-oam/coco-cli/internal/store"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"run", "manual", "submit", "health", "serve", "runs", "batch"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "coco-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("offline"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("no-store"))
}

func TestCommandFlags(t *testing.T) {
	for _, name := range []string{"out", "matrix-out", "explain", "json", "no-color"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "run --%s", name)
		assert.NotNil(t, manualCmd.Flags().Lookup(name), "manual --%s", name)
	}

	est := manualCmd.Flags().Lookup("estimations")
	require.NotNil(t, est)
	assert.Equal(t, "-", est.DefValue)

	port := serveCmd.Flags().Lookup("port")
	require.NotNil(t, port)
	assert.Equal(t, "0", port.DefValue)

	conc := batchCmd.Flags().Lookup("concurrency")
	require.NotNil(t, conc)
	assert.Equal(t, "4", conc.DefValue)
}

func TestInitEnv_OfflineWithoutStore(t *testing.T) {
	cfg = &config.Config{
		Engine: config.EngineConfig{Disabled: true},
		Store:  config.StoreConfig{Disabled: true},
	}
	t.Cleanup(func() { cfg = nil })

	env, err := initEnv(context.Background())
	require.NoError(t, err)
	defer env.Close()

	assert.Nil(t, env.Client)
	assert.Nil(t, env.Store)
	require.NotNil(t, env.Pipeline)
	assert.Equal(t, 8, env.Schema.Len())
}

func TestInitEnv_SQLiteStore(t *testing.T) {
	cfg = &config.Config{
		Engine: config.EngineConfig{Disabled: true},
		Store:  config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "coco.db")},
	}
	t.Cleanup(func() { cfg = nil })

	env, err := initEnv(context.Background())
	require.NoError(t, err)
	defer env.Close()

	require.NotNil(t, env.Store)
	runs, err := env.Store.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestInitEnv_BadSchema(t *testing.T) {
	cfg = &config.Config{
		Engine: config.EngineConfig{Disabled: true},
		Store:  config.StoreConfig{Disabled: true},
		Schema: config.SchemaConfig{File: filepath.Join(t.TempDir(), "missing.yaml")},
	}
	t.Cleanup(func() { cfg = nil })

	_, err := initEnv(context.Background())
	assert.Error(t, err)
}

func TestNewEngineClient(t *testing.T) {
	c := newEngineClient(config.EngineConfig{
		FormURL:        "https://coco.example/form.php",
		EngineURL:      "https://coco.example/engine.php",
		TimeoutSecs:    5,
		MaxAttempts:    2,
		RetryDelayMs:   10,
		HealthAttempts: 1,
		Stair:          50,
		Model:          "Y0",
		ButtonLabel:    "Futtatás",
		RatePerSec:     1,
		MinParseRatio:  0.8,
		MinParseRows:   3,
	})
	assert.NotNil(t, c)
}
