package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/subcommands"
	"github.com/nasiyabot/backend/internal/database"
	"github.com/nasiyabot/backend/internal/models"
	"github.com/nasiyabot/backend/internal/services"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create missing tables and columns" }
func (*migrateCmd) Usage() string {
	return `nasiyactl migrate

  Applies the schema to the configured store. Safe to run repeatedly.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	if err := database.Migrate(ctx, e.store.DB(), e.store.Driver(), e.logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Println("schema is up to date")
	return subcommands.ExitSuccess
}

type reportCmd struct {
	tenant string
	period string
	out    string
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "export a store's transactions as a spreadsheet" }
func (*reportCmd) Usage() string {
	return `nasiyactl report -tenant <store name> [-period weekly|monthly|all] [-o <dir>]

  Writes the same workbook the reports menu sends to staff.
`
}

func (p *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.tenant, "tenant", "", "Store name to export.")
	f.StringVar(&p.period, "period", string(services.PeriodMonth), "Report window: weekly, monthly or all.")
	f.StringVar(&p.out, "o", ".", "Directory to write the workbook into.")
}

func (p *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.tenant == "" {
		fmt.Fprintln(os.Stderr, "-tenant is required")
		return subcommands.ExitUsageError
	}
	period := services.ReportPeriod(p.period)
	switch period {
	case services.PeriodWeek, services.PeriodMonth, services.PeriodAll:
	default:
		fmt.Fprintf(os.Stderr, "unknown period %q\n", p.period)
		return subcommands.ExitUsageError
	}

	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	owner, err := e.store.GetTenantOwner(ctx, p.tenant)
	if errors.Is(err, models.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "no store named %q\n", p.tenant)
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	rep, err := e.reports().TenantReport(ctx, owner.ID, period)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if rep.Data == nil {
		fmt.Println("no entries for this period")
		return subcommands.ExitSuccess
	}
	return writeFile(filepath.Join(p.out, rep.FileName), rep.Data)
}

type backupCmd struct {
	out string
}

func (*backupCmd) Name() string     { return "backup" }
func (*backupCmd) Synopsis() string { return "write a snapshot of the store to disk" }
func (*backupCmd) Usage() string {
	return `nasiyactl backup [-o <dir>]

  SQLite stores are copied as a database file; other drivers are exported as a workbook.
`
}

func (p *backupCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.out, "o", ".", "Directory to write the snapshot into.")
}

func (p *backupCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	backups := services.NewBackupService(e.store, e.reports(), nil, nil, e.cfg.Location, e.logger)
	name, data, err := backups.Snapshot(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return writeFile(filepath.Join(p.out, name), data)
}

type verifyCmd struct{}

func (*verifyCmd) Name() string { return "verify" }
func (*verifyCmd) Synopsis() string {
	return "check every stored balance against the sum of its transactions"
}
func (*verifyCmd) Usage() string {
	return `nasiyactl verify

  Exits non-zero when any customer's balance has drifted from its transaction history.
`
}
func (*verifyCmd) SetFlags(*flag.FlagSet) {}

func (*verifyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	mismatches, err := e.store.ReconcileBalances(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if len(mismatches) == 0 {
		fmt.Println("all balances match their transactions")
		return subcommands.ExitSuccess
	}
	for _, m := range mismatches {
		fmt.Printf("customer %d (seller %d): stored %s, computed %s\n", m.CustomerID, m.SellerID,
			services.FormatAmount(m.Stored), services.FormatAmount(m.Computed))
	}
	return subcommands.ExitFailure
}

func writeFile(path string, data []byte) subcommands.ExitStatus {
	if err := os.WriteFile(path, data, 0o600); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Println(path)
	return subcommands.ExitSuccess
}
