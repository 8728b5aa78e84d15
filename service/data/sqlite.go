package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// documentRow stores one document as a JSON blob keyed by (collection, id).
type documentRow struct {
	Collection string `gorm:"primaryKey;size:128"`
	DocID      string `gorm:"primaryKey;size:256"`
	Fields     string `gorm:"type:text;not null"`
	UpdatedAt  time.Time
}

func (documentRow) TableName() string {
	return "documents"
}

type sqliteService struct {
	db *gorm.DB
}

func NewSQLite(path string) (IService, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		// WAL lets writers proceed while a StreamAll cursor is still open
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}

	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("migrating sqlite schema: %w", err)
	}

	return &sqliteService{db: db}, nil
}

func (svc *sqliteService) MergeSet(ctx context.Context, collection, id string, fields map[string]any) error {
	return svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return mergeRow(tx, collection, id, fields, time.Now())
	})
}

func (svc *sqliteService) StreamAll(ctx context.Context, collection string) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		rows, err := svc.db.WithContext(ctx).
			Model(&documentRow{}).
			Where("collection = ?", collection).
			Order("doc_id").
			Rows()
		if err != nil {
			yield(Document{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var row documentRow
			if err := svc.db.ScanRows(rows, &row); err != nil {
				yield(Document{}, err)
				return
			}

			doc, err := row.document()
			if !yield(doc, err) || err != nil {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(Document{}, err)
		}
	}
}

func (svc *sqliteService) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	var row documentRow
	err := svc.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, err
	}

	doc, err := row.document()
	if err != nil {
		return Document{}, false, err
	}
	return doc, true, nil
}

func (svc *sqliteService) CommitBatch(ctx context.Context, collection string, docs []Document) error {
	if len(docs) > MaxBatchWrites {
		return ErrBatchTooLarge(len(docs))
	}

	return svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for _, d := range docs {
			if err := mergeRow(tx, collection, d.ID, d.Fields, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (svc *sqliteService) Close() error {
	sqlDB, err := svc.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func mergeRow(tx *gorm.DB, collection, id string, fields map[string]any, now time.Time) error {
	var existing documentRow
	current := map[string]any{}

	err := tx.Where("collection = ? AND doc_id = ?", collection, id).Take(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return err
	default:
		if err := json.Unmarshal([]byte(existing.Fields), &current); err != nil {
			return fmt.Errorf("decoding %s/%s: %w", collection, id, err)
		}
	}

	merged, err := json.Marshal(mergeFields(current, fields, now))
	if err != nil {
		return err
	}

	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&documentRow{
		Collection: collection,
		DocID:      id,
		Fields:     string(merged),
		UpdatedAt:  now.UTC(),
	}).Error
}

func (row documentRow) document() (Document, error) {
	fields := map[string]any{}
	if err := json.Unmarshal([]byte(row.Fields), &fields); err != nil {
		return Document{}, fmt.Errorf("decoding %s/%s: %w", row.Collection, row.DocID, err)
	}
	return Document{ID: row.DocID, Fields: fields}, nil
}
