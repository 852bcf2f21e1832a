package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/nasiyabot/backend/internal/database"
	"github.com/nasiyabot/backend/internal/notify"
	"go.uber.org/zap"
)

var ErrNoBackupRecipient = errors.New("no superadmin id configured for backups")

// BackupService ships a copy of the whole store to the first configured superadmin.
type BackupService struct {
	store    *database.Store
	reports  *ReportService
	identity *IdentityService
	notifier *notify.Notifier
	location *time.Location
	logger   *zap.Logger
}

func NewBackupService(store *database.Store, reports *ReportService, identity *IdentityService,
	notifier *notify.Notifier, location *time.Location, logger *zap.Logger) *BackupService {
	if location == nil {
		location = time.UTC
	}
	return &BackupService{
		store:    store,
		reports:  reports,
		identity: identity,
		notifier: notifier,
		location: location,
		logger:   logger.Named("backup"),
	}
}

func (s *BackupService) Name() string { return "backup" }

// Snapshot renders the store into an attachment. SQLite stores are copied as a database file,
// server databases are exported as a workbook.
func (s *BackupService) Snapshot(ctx context.Context) (string, []byte, error) {
	stamp := s.store.Now().In(s.location).Format("20060102_1504")

	if s.store.Driver() != database.DriverSQLite {
		data, err := s.reports.DumpWorkbook(ctx)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("backup_%s.xlsx", stamp), data, nil
	}

	path := filepath.Join(os.TempDir(), "nasiya-"+uuid.NewString()+".db")
	defer os.Remove(path)
	if err := s.store.SnapshotFile(ctx, path); err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read snapshot: %w", err)
	}
	return fmt.Sprintf("backup_%s.db", stamp), data, nil
}

// Run sends the snapshot. Failures are logged and returned to the scheduler only.
func (s *BackupService) Run(ctx context.Context) error {
	ids := s.identity.SuperadminIDs()
	if len(ids) == 0 {
		s.logger.Warn("Backup skipped", zap.Error(ErrNoBackupRecipient))
		return ErrNoBackupRecipient
	}

	name, data, err := s.Snapshot(ctx)
	if err != nil {
		s.logger.Error("Backup snapshot failed", zap.Error(err))
		return err
	}
	caption := "💾 Backup " + s.store.Now().In(s.location).Format("2006-01-02 15:04")
	if err := s.notifier.SendDocument(ctx, ids[0], name, data, caption); err != nil {
		return err
	}
	s.logger.Info("Backup sent", zap.String("file", name), zap.Int("bytes", len(data)))
	return nil
}
