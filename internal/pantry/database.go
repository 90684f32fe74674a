package pantry

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"go.etcd.io/bbolt"
)

const (
	scansBucketName     = "scans"
	inventoryBucketName = "inventory"
)

// DB defines the interface for database operations
type DB interface {
	// SaveScan saves a scan to the database
	SaveScan(scan *Scan) error

	// GetScan retrieves a scan by ID
	GetScan(id string) (*Scan, error)

	// ListScans returns all scans, newest first
	ListScans() ([]*Scan, error)

	// DeleteScan removes a scan from the database
	DeleteScan(id string) error

	// SaveItem saves an inventory item under its location
	SaveItem(item *InventoryItem) error

	// GetItem retrieves an inventory item
	GetItem(location Location, id string) (*InventoryItem, error)

	// ListItems returns the items at a location, oldest first
	ListItems(location Location) ([]*InventoryItem, error)

	// ListAllItems returns the items at every location
	ListAllItems() ([]*InventoryItem, error)

	// DeleteItem removes an inventory item
	DeleteItem(location Location, id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB. Inventory items live in one
// nested bucket per location.
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
		if _, err := tx.CreateBucketIfNotExists([]byte(scansBucketName)); err != nil {
			return err
		}
		inventory, err := tx.CreateBucketIfNotExists([]byte(inventoryBucketName))
		if err != nil {
			return err
		}
		for _, loc := range Locations() {
			if _, err := inventory.CreateBucketIfNotExists([]byte(loc)); err != nil {
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

// SaveScan saves a scan to the database
func (b *BoltDB) SaveScan(scan *Scan) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(scan)
		if err != nil {
			return fmt.Errorf("marshaling scan: %w", err)
		}
		return tx.Bucket([]byte(scansBucketName)).Put([]byte(scan.ID), data)
	})
}

// GetScan retrieves a scan by ID
func (b *BoltDB) GetScan(id string) (*Scan, error) {
	var scan *Scan
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(scansBucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("scan %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &scan)
	})
	if err != nil {
		return nil, err
	}
	return scan, nil
}

// ListScans returns all scans, newest first
func (b *BoltDB) ListScans() ([]*Scan, error) {
	scans := make([]*Scan, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(scansBucketName)).ForEach(func(k, v []byte) error {
			var scan Scan
			if err := json.Unmarshal(v, &scan); err != nil {
				return fmt.Errorf("unmarshaling scan: %w", err)
			}
			scans = append(scans, &scan)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(scans, func(a, b *Scan) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return scans, nil
}

// DeleteScan removes a scan from the database
func (b *BoltDB) DeleteScan(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(scansBucketName)).Delete([]byte(id))
	})
}

// locationBucket returns the nested bucket for a location
func locationBucket(tx *bbolt.Tx, location Location) (*bbolt.Bucket, error) {
	bucket := tx.Bucket([]byte(inventoryBucketName)).Bucket([]byte(location))
	if bucket == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLocation, location)
	}
	return bucket, nil
}

// SaveItem saves an inventory item under its location
func (b *BoltDB) SaveItem(item *InventoryItem) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := locationBucket(tx, item.Location)
		if err != nil {
			return err
		}
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshaling item: %w", err)
		}
		return bucket.Put([]byte(item.ID), data)
	})
}

// GetItem retrieves an inventory item
func (b *BoltDB) GetItem(location Location, id string) (*InventoryItem, error) {
	var item *InventoryItem
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket, err := locationBucket(tx, location)
		if err != nil {
			return err
		}
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%s item %s: %w", location, id, ErrNotFound)
		}
		return json.Unmarshal(data, &item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListItems returns the items at a location, oldest first
func (b *BoltDB) ListItems(location Location) ([]*InventoryItem, error) {
	items := make([]*InventoryItem, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket, err := locationBucket(tx, location)
		if err != nil {
			return err
		}
		return appendItems(bucket, &items)
	})
	if err != nil {
		return nil, err
	}
	sortItems(items)
	return items, nil
}

// ListAllItems returns the items at every location
func (b *BoltDB) ListAllItems() ([]*InventoryItem, error) {
	items := make([]*InventoryItem, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		for _, loc := range Locations() {
			bucket, err := locationBucket(tx, loc)
			if err != nil {
				return err
			}
			if err := appendItems(bucket, &items); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortItems(items)
	return items, nil
}

// DeleteItem removes an inventory item
func (b *BoltDB) DeleteItem(location Location, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := locationBucket(tx, location)
		if err != nil {
			return err
		}
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("%s item %s: %w", location, id, ErrNotFound)
		}
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func appendItems(bucket *bbolt.Bucket, items *[]*InventoryItem) error {
	return bucket.ForEach(func(k, v []byte) error {
		var item InventoryItem
		if err := json.Unmarshal(v, &item); err != nil {
			return fmt.Errorf("unmarshaling item: %w", err)
		}
		*items = append(*items, &item)
		return nil
	})
}

func sortItems(items []*InventoryItem) {
	slices.SortFunc(items, func(a, b *InventoryItem) int {
		if c := a.DateAdded.Compare(b.DateAdded); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}
