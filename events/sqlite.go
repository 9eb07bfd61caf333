package events

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/govm-net/contractkit/core"
)

// DBEvent represents an event in the database
type DBEvent struct {
	Seq         uint64 `gorm:"column:seq;primaryKey;autoIncrement:false"`
	BlockNumber uint64 `gorm:"column:block_number;not null;index"`
	Contract    string `gorm:"column:contract_address;not null;index;size:64"`
	Signature   string `gorm:"column:signature;index;size:64"`
	Topics      []byte `gorm:"column:topics;type:blob;not null"` // concatenated 32-byte topics
	Data        []byte `gorm:"column:data;type:blob;not null"`
}

// TableName specifies the table name for DBEvent
func (DBEvent) TableName() string {
	return "events"
}

// SQLiteStore persists the event log with gorm.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens the SQLite file at dbPath and migrates the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&DBEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(recs []Record) ([]Record, error) {
	out := make([]Record, len(recs))
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var last uint64
		if err := tx.Model(&DBEvent{}).Select("COALESCE(MAX(seq), 0)").Scan(&last).Error; err != nil {
			return err
		}
		for i, r := range recs {
			r.Seq = last + uint64(i) + 1
			if err := tx.Create(toDB(r)).Error; err != nil {
				return err
			}
			out[i] = r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) Query(f Filter) ([]Record, error) {
	q := s.db.Model(&DBEvent{}).Order("seq")
	if f.Contract != nil {
		q = q.Where("contract_address = ?", f.Contract.String())
	}
	if f.FromBlock > 0 {
		q = q.Where("block_number >= ?", f.FromBlock)
	}
	if f.ToBlock > 0 {
		q = q.Where("block_number <= ?", f.ToBlock)
	}
	var rows []DBEvent
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	var out []Record
	for _, row := range rows {
		r, err := fromDB(row)
		if err != nil {
			return nil, err
		}
		// topics are packed, so topic filtering happens here
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SQLiteStore) Truncate(seq uint64) error {
	return s.db.Where("seq > ?", seq).Delete(&DBEvent{}).Error
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toDB(r Record) *DBEvent {
	row := &DBEvent{
		Seq:         r.Seq,
		BlockNumber: r.BlockNumber,
		Contract:    r.Contract.String(),
		Topics:      make([]byte, 0, len(r.Topics)*32),
		Data:        append([]byte{}, r.Data...),
	}
	if sig, ok := r.Signature(); ok {
		row.Signature = sig.String()
	}
	for _, t := range r.Topics {
		row.Topics = append(row.Topics, t[:]...)
	}
	return row
}

func fromDB(row DBEvent) (Record, error) {
	contract, err := core.AccountIdFromString(row.Contract)
	if err != nil {
		return Record{}, err
	}
	if len(row.Topics)%32 != 0 {
		return Record{}, fmt.Errorf("event %d: malformed topics", row.Seq)
	}
	r := Record{
		Seq:         row.Seq,
		BlockNumber: row.BlockNumber,
		Contract:    contract,
		Data:        row.Data,
	}
	for i := 0; i < len(row.Topics); i += 32 {
		var t core.Hash
		copy(t[:], row.Topics[i:i+32])
		r.Topics = append(r.Topics, t)
	}
	return r, nil
}
