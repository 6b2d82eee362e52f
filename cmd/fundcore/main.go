package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openfund-vn/fundcore/internal/backup"
	"github.com/openfund-vn/fundcore/internal/config"
	"github.com/openfund-vn/fundcore/internal/db"
	"github.com/openfund-vn/fundcore/internal/logger"
	"github.com/openfund-vn/fundcore/internal/repositories"
	"github.com/openfund-vn/fundcore/internal/services"
)

var (
	cfg *config.Config
	log *zap.Logger
)

func main() {
	root := &cobra.Command{
		Use:   "fundcore",
		Short: "Fund accounting core operations",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; environment variables win either way.
			_ = godotenv.Load()
			cfg = config.FromEnv()

			var err error
			log, err = logger.New(cfg.Environment)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}

	root.AddCommand(
		migrateCmd(),
		seedCmd(),
		backupCmd(),
		backupsCmd(),
		restoreCmd(),
		reportCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openStore connects to the configured database and returns the store with a
// cleanup function.
func openStore() (*repositories.Store, func(), error) {
	database, err := db.Connect(db.NewConfig())
	if err != nil {
		return nil, nil, err
	}
	store := repositories.NewStore(database, cfg.WriteGateTimeout)
	return store, func() { _ = database.Close() }, nil
}

func migrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			applied, err := db.RunMigrations(db.NewConfig().DSN(), dir)
			if err != nil {
				return err
			}
			log.Info("migrations applied", zap.Int("count", applied))
			fmt.Printf("Applied %d migration(s)\n", applied)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "./migrations", "migrations directory")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed an empty database from CSV dumps",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			cfg.BootstrapFromCSV = true
			return services.Bootstrap(cmd.Context(), store, cfg, log)
		},
	}
}

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a manual snapshot archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			manifest, err := services.NewBackupService(store, cfg, log).Snapshot(cmd.Context(), backup.KindManual)
			if err != nil {
				return err
			}
			fmt.Printf("Backup %s written to %s\n", manifest.ID, cfg.BackupDir)
			return nil
		},
	}
}

func backupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List snapshot archives, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			manifests, err := services.NewBackupService(store, cfg, log).ListBackups(cmd.Context())
			if err != nil {
				return err
			}
			if len(manifests) == 0 {
				fmt.Println("No backups found")
				return nil
			}
			for _, m := range manifests {
				fmt.Printf("%-44s %-7s %s  %d tx\n",
					m.ID, m.Kind, m.CreatedAt.Format(time.RFC3339), m.RowCounts.Transactions)
			}
			return nil
		},
	}
}

func restoreCmd() *cobra.Command {
	var confirm string
	var noSafety bool
	cmd := &cobra.Command{
		Use:   "restore <backup-id>",
		Short: "Replace the live ledger with a snapshot archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			svc := services.NewBackupService(store, cfg, log)
			if err := svc.Restore(cmd.Context(), args[0], confirm, !noSafety); err != nil {
				return err
			}
			fmt.Printf("Restored from %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&confirm, "confirm", "", "confirmation phrase, must be "+services.RestoreConfirmPhrase)
	cmd.Flags().BoolVar(&noSafety, "no-safety", false, "skip the safety snapshot before restoring")
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Read-only projections over the ledger",
	}
	cmd.AddCommand(dashboardCmd(), investorCmd(), navHistoryCmd(), feeHistoryCmd())
	return cmd
}

// currentNAV resolves the NAV to report against: the --nav flag when given,
// otherwise the NAV of the newest transaction.
func currentNAV(ctx context.Context, store *repositories.Store, flag string) (decimal.Decimal, error) {
	if flag != "" {
		nav, err := decimal.NewFromString(flag)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid --nav value: %w", err)
		}
		return nav, nil
	}
	svc := services.NewTransactionService(store, cfg, log)
	nav, ok, err := svc.LatestNAV(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, fmt.Errorf("no transactions on record, pass --nav")
	}
	return nav, nil
}

func dashboardCmd() *cobra.Command {
	var navFlag string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Fund-wide headline numbers",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			nav, err := currentNAV(cmd.Context(), store, navFlag)
			if err != nil {
				return err
			}
			kpis, err := services.NewReportingService(store).DashboardKPIs(cmd.Context(), nav)
			if err != nil {
				return err
			}
			fmt.Printf("Total NAV:          %s\n", kpis.TotalNAV)
			fmt.Printf("Total units:        %s\n", kpis.TotalUnits)
			fmt.Printf("Price per unit:     %s\n", kpis.PricePerUnit)
			fmt.Printf("Investors:          %d\n", kpis.InvestorCount)
			fmt.Printf("Fees paid to date:  %s\n", kpis.TotalFeesPaid)
			fmt.Printf("Fund manager value: %s\n", kpis.FundManagerValue)
			fmt.Printf("Return since start: %s%%\n", kpis.GrossReturnSinceInceptionPct)
			return nil
		},
	}
	cmd.Flags().StringVar(&navFlag, "nav", "", "total NAV to value positions at")
	return cmd
}

func investorCmd() *cobra.Command {
	var navFlag string
	cmd := &cobra.Command{
		Use:   "investor <id>",
		Short: "Balance and lifetime performance for one investor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			investorID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid investor id: %w", err)
			}

			store, cleanup, err := openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			nav, err := currentNAV(cmd.Context(), store, navFlag)
			if err != nil {
				return err
			}
			reports := services.NewReportingService(store)
			balance, err := reports.InvestorBalance(cmd.Context(), investorID, nav)
			if err != nil {
				return err
			}
			perf, err := reports.LifetimePerformance(cmd.Context(), investorID, nav)
			if err != nil {
				return err
			}
			fmt.Printf("%s (investor %d)\n", balance.Name, balance.InvestorID)
			fmt.Printf("Units:           %s across %d tranche(s)\n", balance.Units, balance.TrancheCount)
			fmt.Printf("Current value:   %s at price %s\n", balance.CurrentValue, balance.PricePerUnit)
			fmt.Printf("Invested:        %s\n", perf.OriginalInvested)
			fmt.Printf("Withdrawn:       %s\n", perf.TotalWithdrawn)
			fmt.Printf("Fees paid:       %s\n", perf.TotalFeesPaid)
			fmt.Printf("Net profit:      %s (%s%%)\n", perf.NetProfit, perf.NetReturnPct)
			fmt.Printf("Gross profit:    %s (%s%%)\n", perf.GrossProfit, perf.GrossReturnPct)
			return nil
		},
	}
	cmd.Flags().StringVar(&navFlag, "nav", "", "total NAV to value positions at")
	return cmd
}

func navHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nav-history",
		Short: "NAV of every transaction in chronological order",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			points, err := services.NewReportingService(store).NAVHistory(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range points {
				fmt.Printf("%s  %-24s %s\n", p.Date.Format("2006-01-02"), p.Type, p.NAV)
			}
			return nil
		},
	}
}

func feeHistoryCmd() *cobra.Command {
	var period string
	var investorFlag int64
	cmd := &cobra.Command{
		Use:   "fee-history",
		Short: "Applied fee records",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openStore()
			if err != nil {
				return err
			}
			defer cleanup()

			var investorID *int64
			if cmd.Flags().Changed("investor") {
				investorID = &investorFlag
			}
			records, err := services.NewReportingService(store).FeeHistory(cmd.Context(), period, investorID)
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Printf("%-10s investor %-4d fee %-14s units %-14s at price %s\n",
					r.Period, r.InvestorID, r.FeeAmount, r.FeeUnits, r.NAVPerUnit)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "filter by fee period")
	cmd.Flags().Int64Var(&investorFlag, "investor", 0, "filter by investor id")
	return cmd
}
