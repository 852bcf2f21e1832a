package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nasiyabot/backend/internal/database"
	"github.com/nasiyabot/backend/internal/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ReportPeriod selects how far back a tenant report reaches.
type ReportPeriod string

const (
	PeriodWeek  ReportPeriod = "weekly"
	PeriodMonth ReportPeriod = "monthly"
	PeriodAll   ReportPeriod = "all"
)

// Window returns the look-back duration. Zero means the whole history.
func (p ReportPeriod) Window() time.Duration {
	switch p {
	case PeriodWeek:
		return 7 * 24 * time.Hour
	case PeriodMonth:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

const reportSheet = "Report"

var reportHeaders = []string{"Date", "Customer", "Phone", "Amount", "Description", "Type"}

// Report is a rendered spreadsheet ready to be sent as a document.
type Report struct {
	FileName string
	Rows     int
	Data     []byte
}

type ReportService struct {
	store    *database.Store
	phones   *PhoneService
	location *time.Location
	logger   *zap.Logger
}

func NewReportService(store *database.Store, phones *PhoneService, location *time.Location, logger *zap.Logger) *ReportService {
	if location == nil {
		location = time.UTC
	}
	return &ReportService{
		store:    store,
		phones:   phones,
		location: location,
		logger:   logger.Named("reports"),
	}
}

// LocalTime renders t in the report location at minute precision.
func (s *ReportService) LocalTime(t time.Time) string {
	return t.In(s.location).Format("2006-01-02 15:04")
}

// TenantReport exports a tenant's transactions for the period, newest first.
// Rows is zero when the window holds no transactions; Data is nil in that case.
func (s *ReportService) TenantReport(ctx context.Context, tenantID int64, period ReportPeriod) (*Report, error) {
	now := s.store.Now()
	var since time.Time
	if w := period.Window(); w > 0 {
		since = now.Add(-w)
	}

	rows, err := s.store.TenantTransactions(ctx, tenantID, since)
	if err != nil {
		return nil, err
	}
	report := &Report{
		FileName: fmt.Sprintf("report_%s_%s.xlsx", period, now.In(s.location).Format("20060102")),
		Rows:     len(rows),
	}
	if len(rows) == 0 {
		return report, nil
	}

	data, err := s.RenderTransactions(rows)
	if err != nil {
		return nil, err
	}
	report.Data = data
	s.logger.Info("Report generated",
		zap.Int64("seller_id", tenantID),
		zap.String("period", string(period)),
		zap.Int("rows", len(rows)))
	return report, nil
}

// RenderTransactions writes rows into a single-sheet workbook.
func (s *ReportService) RenderTransactions(rows []models.ReportRow) ([]byte, error) {
	f, err := newWorkbook(reportSheet)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := writeHeader(f, reportSheet, reportHeaders); err != nil {
		return nil, err
	}
	for i, r := range rows {
		values := []any{
			s.LocalTime(r.CreatedAt),
			r.CustomerName,
			s.phones.Display(r.CustomerPhone),
			r.Amount,
			r.Description,
			r.Kind(),
		}
		if err := writeRow(f, reportSheet, i+2, values); err != nil {
			return nil, err
		}
	}
	if err := setWidths(f, reportSheet, []float64{18, 28, 20, 14, 32, 14}); err != nil {
		return nil, err
	}
	return workbookBytes(f)
}

// DumpWorkbook exports every table to one workbook. It is the backup format for server databases.
func (s *ReportService) DumpWorkbook(ctx context.Context) ([]byte, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	customers, err := s.store.ListAllCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	txns, err := s.store.ListAllTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	f, err := newWorkbook("Accounts")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := writeHeader(f, "Accounts", []string{"ID", "Full name", "Username", "Phone", "Role", "Store", "Owner", "Contact phones", "Created"}); err != nil {
		return nil, err
	}
	for i, a := range accounts {
		values := []any{a.ID, a.FullName, a.Username, a.Phone, string(a.Role), a.TenantName, a.IsOwner,
			strings.Join(a.ContactPhones, ", "), a.CreatedAt.UTC().Format(time.RFC3339)}
		if err := writeRow(f, "Accounts", i+2, values); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet("Customers"); err != nil {
		return nil, err
	}
	if err := writeHeader(f, "Customers", []string{"ID", "Seller ID", "Full name", "Phone", "Balance", "Account ID"}); err != nil {
		return nil, err
	}
	for i, c := range customers {
		var linked any
		if c.AccountID != nil {
			linked = *c.AccountID
		}
		if err := writeRow(f, "Customers", i+2, []any{c.ID, c.SellerID, c.FullName, c.Phone, c.Balance, linked}); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet("Transactions"); err != nil {
		return nil, err
	}
	if err := writeHeader(f, "Transactions", []string{"ID", "Customer ID", "Amount", "Description", "Created"}); err != nil {
		return nil, err
	}
	for i, t := range txns {
		values := []any{t.ID, t.CustomerID, t.Amount, t.Description, t.CreatedAt.UTC().Format(time.RFC3339)}
		if err := writeRow(f, "Transactions", i+2, values); err != nil {
			return nil, err
		}
	}
	return workbookBytes(f)
}

func newWorkbook(sheet string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	return f, nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	values := make([]any, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := writeRow(f, sheet, 1, values); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func setWidths(f *excelize.File, sheet string, widths []float64) error {
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return nil
}

func workbookBytes(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	return buf.Bytes(), nil
}
