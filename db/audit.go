package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"citewatch.io/auth"
)

// auditRecord is the GORM model backing the append-only audit log. It is
// intentionally kept in a separate database/connection from the primary
// Store: an audit trail that shared a transaction with the data it audits
// could be rolled back along with it.
type auditRecord struct {
	ID           uint `gorm:"primaryKey"`
	Timestamp    time.Time
	Username     string `gorm:"index"`
	Action       string `gorm:"index"`
	RemoteAddr   string
	Success      bool
	ErrorMessage string
}

func (auditRecord) TableName() string { return "audit_log" }

// AuditStore is an append-only log of authentication and account-mutation
// events, backed by GORM rather than pgx: it has no need for hand-tuned
// SQL, and AutoMigrate keeps its schema independent of the primary store's.
type AuditStore struct {
	db *gorm.DB
}

// NewAuditStore opens (and migrates) the audit log database at dsn.
func NewAuditStore(dsn string) (*AuditStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open audit store: %w", err)
	}
	if err := db.AutoMigrate(&auditRecord{}); err != nil {
		return nil, fmt.Errorf("db: migrate audit store: %w", err)
	}
	return &AuditStore{db: db}, nil
}

// Log appends entry to the audit log. It implements auth.AuditLogger.
func (a *AuditStore) Log(entry *auth.AuditLog) error {
	rec := auditRecord{
		Timestamp:    entry.Timestamp,
		Username:     entry.Username,
		Action:       entry.Action,
		RemoteAddr:   entry.RemoteAddr,
		Success:      entry.Success,
		ErrorMessage: entry.ErrorMessage,
	}
	if err := a.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("db: append audit entry: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (a *AuditStore) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
