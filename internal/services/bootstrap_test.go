package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeSeedFiles(t *testing.T, dir string) {
	t.Helper()
	investors := `id,name,phone,email,address,join_date
1,Alice,,alice@example.com,,2024-01-01
2,Bob,,,,2024-02-01
`
	tranches := `tranche_id,investor_id,entry_date,entry_nav,units,invested_value,hwm
tr_seed_1,1,2024-01-01,10000,1000,10000000,12000
tr_seed_2,2,2024-02-01,11000,500,5500000,12000
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "investors.csv"), []byte(investors), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tranches.csv"), []byte(tranches), 0o644))
}

func TestBootstrap_SeedsEmptyDatabase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeSeedFiles(t, dir)
	env.cfg.BootstrapFromCSV = true
	env.cfg.BootstrapCSVDir = dir

	require.NoError(t, Bootstrap(ctx, env.store, env.cfg, zap.NewNop()))

	investors, err := env.store.Repos().Investors.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, investors, 2)

	tranches, err := env.store.Repos().Tranches.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, tranches, 2)

	alice, err := env.store.Repos().Tranches.Get(ctx, "tr_seed_1")
	require.NoError(t, err)
	requireDecimalEqual(t, dec("1000"), alice.Units)
	requireDecimalEqual(t, dec("12000"), alice.HWM)
}

func TestBootstrap_SkipsNonEmptyDatabase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addInvestor(t, 1, "Existing", day0)

	dir := t.TempDir()
	writeSeedFiles(t, dir)
	env.cfg.BootstrapFromCSV = true
	env.cfg.BootstrapCSVDir = dir

	require.NoError(t, Bootstrap(ctx, env.store, env.cfg, zap.NewNop()))

	investors, err := env.store.Repos().Investors.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, investors, 1)
}

func TestBootstrap_DisabledIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.BootstrapFromCSV = false
	require.NoError(t, Bootstrap(context.Background(), env.store, env.cfg, zap.NewNop()))
}

func TestBootstrap_MissingSeedFilesIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.cfg.BootstrapFromCSV = true
	env.cfg.BootstrapCSVDir = t.TempDir()

	require.NoError(t, Bootstrap(ctx, env.store, env.cfg, zap.NewNop()))

	investors, err := env.store.Repos().Investors.List(ctx, true)
	require.NoError(t, err)
	require.Empty(t, investors)
}
