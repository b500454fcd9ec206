package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	receiptsBucket  = "receipts"
	inventoryBucket = "inventory"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// DB defines the interface for database operations
type DB interface {
	// SaveReceipt saves a receipt to the database
	SaveReceipt(receipt *Receipt) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(id string) (*Receipt, error)

	// ListReceipts returns all receipts
	ListReceipts() ([]*Receipt, error)

	// DeleteReceipt removes a receipt from the database
	DeleteReceipt(id string) error

	// SaveItem saves an inventory item
	SaveItem(item *InventoryItem) error

	// GetItem retrieves an inventory item by ID
	GetItem(id string) (*InventoryItem, error)

	// ListItems returns all inventory items
	ListItems() ([]*InventoryItem, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB. Records are stored as JSON
// keyed by ID, one bucket per record type.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{receiptsBucket, inventoryBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func put(db *bbolt.DB, bucket, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s record: %w", bucket, err)
	}
	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put([]byte(id), data)
	})
}

func get[T any](db *bbolt.DB, bucket, id string) (*T, error) {
	var out T
	err := db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s %s: %w", bucket, id, ErrNotFound)
		}
		return json.Unmarshal(data, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func list[T any](db *bbolt.DB, bucket string) ([]*T, error) {
	out := make([]*T, 0)
	err := db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).ForEach(func(k, v []byte) error {
			var rec T
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshaling %s record %s: %w", bucket, k, err)
			}
			out = append(out, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveReceipt saves a receipt to the database
func (b *BoltDB) SaveReceipt(receipt *Receipt) error {
	return put(b.db, receiptsBucket, receipt.ID, receipt)
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id string) (*Receipt, error) {
	return get[Receipt](b.db, receiptsBucket, id)
}

// ListReceipts returns all receipts
func (b *BoltDB) ListReceipts() ([]*Receipt, error) {
	return list[Receipt](b.db, receiptsBucket)
}

// DeleteReceipt removes a receipt from the database
func (b *BoltDB) DeleteReceipt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(receiptsBucket)).Delete([]byte(id))
	})
}

// SaveItem saves an inventory item
func (b *BoltDB) SaveItem(item *InventoryItem) error {
	return put(b.db, inventoryBucket, item.ID, item)
}

// GetItem retrieves an inventory item by ID
func (b *BoltDB) GetItem(id string) (*InventoryItem, error) {
	return get[InventoryItem](b.db, inventoryBucket, id)
}

// ListItems returns all inventory items
func (b *BoltDB) ListItems() ([]*InventoryItem, error) {
	return list[InventoryItem](b.db, inventoryBucket)
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
