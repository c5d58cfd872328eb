package backup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/EiDHindY/vaulture/internal/common"
	bolt "go.etcd.io/bbolt"
)

var backupsBucket = []byte("backups")

// BoltRemote keeps blobs in a single bbolt archive file, so many backups
// travel as one file.
type BoltRemote struct {
	db *bolt.DB
}

// OpenBoltRemote opens or creates the archive at path.
func OpenBoltRemote(path string) (*BoltRemote, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(backupsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", backupsBucket, err)
	}
	return &BoltRemote{db: db}, nil
}

func (b *BoltRemote) Close() error {
	return b.db.Close()
}

func (b *BoltRemote) Put(_ context.Context, name string, data []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(backupsBucket).Put([]byte(name), data)
	})
}

func (b *BoltRemote) Get(_ context.Context, name string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(backupsBucket).Get([]byte(name))
		if v == nil {
			return common.ErrNotFound
		}
		// The slice is only valid during the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

func (b *BoltRemote) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(backupsBucket).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			names = append(names, string(k))
		}
		return nil
	})
	return names, err
}
