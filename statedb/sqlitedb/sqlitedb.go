// Package sqlitedb stores statedb pairs in a SQLite table through gorm.
package sqlitedb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/govm-net/contractkit/statedb"
)

const defaultDBPath = "./state.db"

func init() {
	if err := statedb.Register(statedb.SQLite, func(params map[string]any) (statedb.Database, error) {
		return New(statedb.StringParam(params, "path", defaultDBPath))
	}); err != nil {
		panic(err)
	}
}

// DBPair represents one key/value pair in the database
type DBPair struct {
	Key   []byte `gorm:"column:k;primaryKey;type:blob"`
	Value []byte `gorm:"column:v;type:blob;not null"`
}

// TableName specifies the table name for DBPair
func (DBPair) TableName() string {
	return "state"
}

// Database implements statedb.Database on SQLite.
type Database struct {
	db *gorm.DB
}

// New opens the SQLite file at dbPath and migrates the schema.
func New(dbPath string) (*Database, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// every pooled connection to ":memory:" would see its own database
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&DBPair{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Database{db: db}, nil
}

func (d *Database) Get(key []byte) ([]byte, error) {
	var row DBPair
	err := d.db.Where("k = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, statedb.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.Value, nil
}

func (d *Database) Has(key []byte) (bool, error) {
	var n int64
	err := d.db.Model(&DBPair{}).Where("k = ?", key).Count(&n).Error
	return n > 0, err
}

func (d *Database) Put(key, value []byte) error {
	return upsert(d.db, key, value)
}

func (d *Database) Delete(key []byte) error {
	return d.db.Where("k = ?", key).Delete(&DBPair{}).Error
}

func (d *Database) Iterator(start, end []byte) (statedb.Iterator, error) {
	q := d.db.Model(&DBPair{}).Order("k")
	if start != nil {
		q = q.Where("k >= ?", start)
	}
	if end != nil {
		q = q.Where("k < ?", end)
	}
	var rows []DBPair
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	kvs := make([]statedb.KV, len(rows))
	for i, r := range rows {
		kvs[i] = statedb.KV{Key: r.Key, Value: r.Value}
	}
	return statedb.NewSliceIterator(kvs), nil
}

func (d *Database) NewBatch() statedb.Batch {
	return &batch{db: d.db}
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func upsert(db *gorm.DB, key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v"}),
	}).Create(&DBPair{Key: key, Value: value}).Error
}

type op struct {
	key    []byte
	value  []byte
	delete bool
}

type batch struct {
	db  *gorm.DB
	ops []op
}

func (b *batch) Put(key, value []byte) error {
	b.ops = append(b.ops, op{key: append([]byte(nil), key...), value: append([]byte{}, value...)})
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.ops = append(b.ops, op{key: append([]byte(nil), key...), delete: true})
	return nil
}

// Write applies the batch in one SQL transaction.
func (b *batch) Write() error {
	return b.db.Transaction(func(tx *gorm.DB) error {
		for _, o := range b.ops {
			if o.delete {
				if err := tx.Where("k = ?", o.key).Delete(&DBPair{}).Error; err != nil {
					return err
				}
				continue
			}
			if err := upsert(tx, o.key, o.value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *batch) Reset() {
	b.ops = b.ops[:0]
}
