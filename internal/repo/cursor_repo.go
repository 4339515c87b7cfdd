// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file persists the push listener's mailbox cursor so
// the change-log position survives restarts.
package repo

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/procurehub/go-procurement-backend/internal/domain"
)

// GetPushCursor returns the stored history position for a mailbox, or
// ErrNotFound when the listener has never run (bootstrap case).
func GetPushCursor(db *gorm.DB, mailbox string) (string, error) {
	var c domain.PushCursor
	if err := db.Where("mailbox = ?", mailbox).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return c.HistoryID, nil
}

// SetPushCursor stores (or advances) the history position for a mailbox.
func SetPushCursor(db *gorm.DB, mailbox, historyID string) error {
	row := &domain.PushCursor{
		Mailbox:   mailbox,
		HistoryID: historyID,
		UpdatedAt: time.Now().UTC(),
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "mailbox"}},
		DoUpdates: clause.AssignmentColumns([]string{"history_id", "updated_at"}),
	}).Create(row).Error
}
