package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/expense-sync/constants"
	"github.com/joseph-ayodele/expense-sync/internal/common"
	"github.com/joseph-ayodele/expense-sync/internal/export"
	"github.com/joseph-ayodele/expense-sync/internal/repository"
	"github.com/joseph-ayodele/expense-sync/internal/utils"
)

func main() {
	out := flag.String("out", "expenses."+constants.ExportExt, "output workbook path")
	fromStr := flag.String("from", "", "first date to include (YYYY-MM-DD)")
	toStr := flag.String("to", "", "last date to include (YYYY-MM-DD)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	from, err := utils.ParseYMDPtr(*fromStr)
	if err != nil {
		logger.Error("invalid -from date", "value", *fromStr, "error", err)
		os.Exit(2)
	}
	to, err := utils.ParseYMDPtr(*toStr)
	if err != nil {
		logger.Error("invalid -to date", "value", *toStr, "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := common.LoadConfig()
	db, err := repository.Open(ctx, repository.Config{Path: cfg.Local.Path, BusyTimeout: 5 * time.Second}, logger)
	if err != nil {
		logger.Error("failed to open local store", "error", err, "path", cfg.Local.Path)
		os.Exit(1)
	}
	defer repository.Close(db, logger)

	svc := export.NewService(repository.NewExpenseRepository(db, logger), logger)
	data, err := svc.ExportExpensesXLSX(ctx, from, to)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}

	path := *out
	if ext := constants.NormalizeExt(filepath.Ext(path)); ext != constants.ExportExt {
		path += "." + constants.ExportExt
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Error("failed to write workbook", "path", path, "error", err)
		os.Exit(1)
	}
	logger.Info("workbook written", "path", path, "bytes", len(data))
}
