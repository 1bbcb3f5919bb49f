// Package postgres implements dispatch.TokenStore on a SQL token table via GORM.
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tinywideclouds/go-fcm-messaging/pkg/dispatch"
)

// DefaultTable is the token table name used when none is configured.
const DefaultTable = "fcm_tokens"

// tokenRow maps the columns we read. The table may carry others; they are
// ignored.
type tokenRow struct {
	ID        uint64    `gorm:"column:id;primaryKey"`
	UserID    int64     `gorm:"column:user_id"`
	FCMToken  string    `gorm:"column:fcm_token"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TokenStore reads and prunes the token table. The schema is owned by the
// registration side; this store never migrates it.
type TokenStore struct {
	db    *gorm.DB
	table string
}

func NewTokenStore(db *gorm.DB, table string) *TokenStore {
	if table == "" {
		table = DefaultTable
	}
	return &TokenStore{db: db, table: table}
}

func (s *TokenStore) DeleteByToken(ctx context.Context, token string) (bool, error) {
	res := s.db.WithContext(ctx).Table(s.table).
		Where("fcm_token = ?", token).
		Delete(&tokenRow{})
	if res.Error != nil {
		return false, fmt.Errorf("delete token from %s: %w", s.table, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *TokenStore) DeleteTokens(ctx context.Context, tokens []string) (bool, error) {
	if len(tokens) == 0 {
		return true, nil
	}
	res := s.db.WithContext(ctx).Table(s.table).
		Where("fcm_token IN ?", tokens).
		Delete(&tokenRow{})
	if res.Error != nil {
		return false, fmt.Errorf("delete %d tokens from %s: %w", len(tokens), s.table, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *TokenStore) TokensForUser(ctx context.Context, userID int64) ([]dispatch.TokenRecord, error) {
	var rows []tokenRow
	err := s.db.WithContext(ctx).Table(s.table).
		Where("user_id = ?", userID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list tokens for user %d: %w", userID, err)
	}
	return toRecords(rows), nil
}

func (s *TokenStore) AllTokens(ctx context.Context) ([]dispatch.TokenRecord, error) {
	var rows []tokenRow
	if err := s.db.WithContext(ctx).Table(s.table).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return toRecords(rows), nil
}

func toRecords(rows []tokenRow) []dispatch.TokenRecord {
	records := make([]dispatch.TokenRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, dispatch.TokenRecord{
			UserID:    r.UserID,
			FCMToken:  r.FCMToken,
			CreatedAt: r.CreatedAt,
		})
	}
	return records
}
