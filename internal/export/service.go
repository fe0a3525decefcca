package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/expense-sync/internal/entity"
	"github.com/joseph-ayodele/expense-sync/internal/repository"
)

const (
	expensesSheet   = "Expenses"
	categoriesSheet = "Categories"
)

// CategoryTotal is the summed spend of one category.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
	Count    int
}

// Service produces XLSX workbooks from the local expense cache.
type Service struct {
	repo   repository.ExpenseRepository
	logger *slog.Logger
}

func NewService(repo repository.ExpenseRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportExpensesXLSX returns a workbook (as bytes) for the given date window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> everything in the local store.
func (s *Service) ExportExpensesXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	fromDate, toDate := normalizeWindow(from, to, time.Now())
	recs, err := s.repo.FetchRange(ctx, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), expensesSheet); err != nil {
		return nil, err
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, err
	}

	writeRow(f, expensesSheet, 1, "Date", "Category", "Amount", "Icon", "Synced", "ID")
	for i, e := range recs {
		row := i + 2
		synced := "No"
		if e.Synced {
			synced = "Yes"
		}
		writeRow(f, expensesSheet, row,
			e.Date.Format("2006-01-02"),
			e.Category,
			e.Amount.InexactFloat64(),
			e.IconName,
			synced,
			e.ID.String(),
		)
		cell, _ := excelize.CoordinatesToCellName(3, row)
		_ = f.SetCellStyle(expensesSheet, cell, cell, amountStyle)
	}
	_ = f.SetColWidth(expensesSheet, "A", "A", 12) // date
	_ = f.SetColWidth(expensesSheet, "B", "B", 18) // category
	_ = f.SetColWidth(expensesSheet, "C", "C", 12) // amount
	_ = f.SetColWidth(expensesSheet, "D", "E", 12)
	_ = f.SetColWidth(expensesSheet, "F", "F", 38) // id

	if _, err := f.NewSheet(categoriesSheet); err != nil {
		return nil, err
	}
	totals := CategoryTotals(recs)
	writeRow(f, categoriesSheet, 1, "Category", "Count", "Total")
	for i, t := range totals {
		writeRow(f, categoriesSheet, i+2, t.Category, t.Count, t.Total.InexactFloat64())
	}
	last := len(totals) + 2
	writeRow(f, categoriesSheet, last, "All", len(recs), TotalSpend(recs).InexactFloat64())
	first, _ := excelize.CoordinatesToCellName(3, 2)
	end, _ := excelize.CoordinatesToCellName(3, last)
	_ = f.SetCellStyle(categoriesSheet, first, end, amountStyle)
	_ = f.SetColWidth(categoriesSheet, "A", "A", 18)

	idx, _ := f.GetSheetIndex(expensesSheet)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"categories", len(totals),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// CategoryTotals sums expenses per category, largest total first.
func CategoryTotals(recs []entity.Expense) []CategoryTotal {
	byCat := make(map[string]*CategoryTotal)
	for _, e := range recs {
		t, ok := byCat[e.Category]
		if !ok {
			t = &CategoryTotal{Category: e.Category}
			byCat[e.Category] = t
		}
		t.Total = t.Total.Add(e.Amount)
		t.Count++
	}

	out := make([]CategoryTotal, 0, len(byCat))
	for _, t := range byCat {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func TotalSpend(recs []entity.Expense) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range recs {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// normalizeWindow turns a date window into inclusive instants: from at the
// start of its day, to at the last instant of its day (UTC).
func normalizeWindow(from, to *time.Time, now time.Time) (*time.Time, *time.Time) {
	var fromDate, toDate *time.Time
	if from != nil {
		f := startOfDay(*from)
		fromDate = &f
	}
	if to == nil && from != nil {
		to = &now
	}
	if to != nil {
		t := startOfDay(*to).Add(24*time.Hour - time.Nanosecond)
		toDate = &t
	}
	return fromDate, toDate
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}
