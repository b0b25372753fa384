// Package bbolt implements a document driver on top of a single bbolt
// file. Buckets are nested owner name, unique id, category and each
// category bucket maps encoded primary keys to instance documents.
package bbolt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrife/confdb/storage/driver"
	"github.com/jrife/confdb/storage/identifier"
	"github.com/jrife/confdb/storage/keys"
	"github.com/jrife/confdb/utils/log"
	"github.com/jrife/confdb/utils/uuid"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const (
	DriverName = "bbolt"
)

func Plugins() []driver.Plugin {
	return []driver.Plugin{
		&BBoltPlugin{},
	}
}

type BBoltPlugin struct {
}

func (plugin *BBoltPlugin) Name() string {
	return DriverName
}

func (plugin *BBoltPlugin) Settings() []driver.Setting {
	return []driver.Setting{
		{Name: "path", Description: "path of the bbolt database file", Required: true},
	}
}

func (plugin *BBoltPlugin) NewDriver(options driver.PluginOptions) (driver.Driver, error) {
	var config BBoltConfig

	if path, ok := options["path"]; !ok {
		return nil, fmt.Errorf("\"path\" is required")
	} else if pathString, ok := path.(string); !ok {
		return nil, fmt.Errorf("\"path\" must be a string")
	} else {
		config.Path = pathString
	}

	return New(config)
}

func (plugin *BBoltPlugin) NewTempDriver() (driver.Driver, error) {
	return plugin.NewDriver(driver.PluginOptions{
		"path": uuid.TempPath("confdb-bbolt"),
	})
}

type BBoltConfig struct {
	Path   string
	Logger *zap.Logger
}

// New opens the bbolt file at config.Path and returns a driver for it
func New(config BBoltConfig) (*driver.RowDriver, error) {
	backend, err := Open(config)

	if err != nil {
		return nil, err
	}

	return driver.NewRowDriver(DriverName, backend, config.Logger), nil
}

var _ driver.RowBackend = (*BBoltBackend)(nil)

// BBoltBackend is a driver.RowBackend stored in bbolt
type BBoltBackend struct {
	db     *bolt.DB
	logger *zap.Logger
}

// Open opens or creates the bbolt file at config.Path
func Open(config BBoltConfig) (*BBoltBackend, error) {
	db, err := bolt.Open(config.Path, 0666, &bolt.Options{Timeout: time.Second})

	if err != nil {
		return nil, fmt.Errorf("could not open bbolt store at %s: %w", config.Path, err)
	}

	logger := log.OrDefault(config.Logger).With(zap.String("path", config.Path))
	logger.Debug("opened bbolt store")

	return &BBoltBackend{db: db, logger: logger}, nil
}

func wrapError(wrap string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bolt.ErrDatabaseNotOpen):
		return driver.ErrClosed
	}

	return fmt.Errorf("%s: %w", wrap, err)
}

func (backend *BBoltBackend) View(ctx context.Context, fn func(txn driver.RowTxn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return wrapError("view transaction failed", backend.db.View(func(tx *bolt.Tx) error {
		return fn(&BBoltTxn{tx: tx})
	}))
}

func (backend *BBoltBackend) Update(ctx context.Context, fn func(txn driver.RowTxn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return wrapError("update transaction failed", backend.db.Update(func(tx *bolt.Tx) error {
		return fn(&BBoltTxn{tx: tx})
	}))
}

func (backend *BBoltBackend) Owners(ctx context.Context) ([]identifier.Owner, error) {
	owners := []identifier.Owner{}

	err := backend.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, names *bolt.Bucket) error {
			ownerName, err := bucketName(name)

			if err != nil {
				return err
			}

			return names.ForEach(func(id []byte, v []byte) error {
				if v != nil || !hasRows(names.Bucket(id)) {
					return nil
				}

				uniqueID, err := bucketName(id)

				if err != nil {
					return err
				}

				owners = append(owners, identifier.Owner{Name: ownerName, UniqueID: uniqueID})

				return nil
			})
		})
	})

	if err != nil {
		return nil, wrapError("could not list owners", err)
	}

	return owners, nil
}

func (backend *BBoltBackend) Close() error {
	return backend.db.Close()
}

// Bucket names are encoded like single part keys so that empty names
// are allowed.
func encodeName(name string) []byte {
	return keys.Encode([]string{name})
}

func bucketName(encoded []byte) (string, error) {
	parts, err := keys.Decode(encoded)

	if err != nil || len(parts) != 1 {
		return "", fmt.Errorf("unexpected bucket %x: %w", encoded, keys.ErrMalformedKey)
	}

	return parts[0], nil
}

// hasRows reports whether any category bucket under an owner bucket
// holds a row
func hasRows(owner *bolt.Bucket) bool {
	if owner == nil {
		return false
	}

	found := false

	_ = owner.ForEach(func(k, v []byte) error {
		if v == nil {
			if k, _ := owner.Bucket(k).Cursor().First(); k != nil {
				found = true
			}
		}

		return nil
	})

	return found
}

var _ driver.RowTxn = (*BBoltTxn)(nil)

// BBoltTxn is a driver.RowTxn for a bbolt transaction
type BBoltTxn struct {
	tx *bolt.Tx
}

func (txn *BBoltTxn) ownerBucket(owner identifier.Owner) *bolt.Bucket {
	names := txn.tx.Bucket(encodeName(owner.Name))

	if names == nil {
		return nil
	}

	return names.Bucket(encodeName(owner.UniqueID))
}

func (txn *BBoltTxn) bucket(owner identifier.Owner, category string) *bolt.Bucket {
	ownerBucket := txn.ownerBucket(owner)

	if ownerBucket == nil {
		return nil
	}

	return ownerBucket.Bucket(encodeName(category))
}

func (txn *BBoltTxn) createBucket(owner identifier.Owner, category string) (*bolt.Bucket, error) {
	bucket, err := txn.tx.CreateBucketIfNotExists(encodeName(owner.Name))

	if err != nil {
		return nil, err
	}

	for _, name := range []string{owner.UniqueID, category} {
		if bucket, err = bucket.CreateBucketIfNotExists(encodeName(name)); err != nil {
			return nil, err
		}
	}

	return bucket, nil
}

func (txn *BBoltTxn) Row(owner identifier.Owner, category string, pk []string) ([]byte, error) {
	bucket := txn.bucket(owner, category)

	if bucket == nil {
		return nil, nil
	}

	value := bucket.Get(keys.Encode(pk))

	if value == nil {
		return nil, nil
	}

	// bbolt memory is only valid for the life of the transaction
	return append([]byte{}, value...), nil
}

func (txn *BBoltTxn) Scan(owner identifier.Owner, category string, prefix []string, fn func(pk []string, data []byte) error) error {
	bucket := txn.bucket(owner, category)

	if bucket == nil {
		return nil
	}

	r := keys.Prefix(prefix)
	cursor := bucket.Cursor()

	for k, v := cursor.Seek(r.Min); k != nil && r.Contains(k); k, v = cursor.Next() {
		pk, err := keys.Decode(k)

		if err != nil {
			return err
		}

		if err := fn(pk, append([]byte{}, v...)); err != nil {
			return err
		}
	}

	return nil
}

func (txn *BBoltTxn) Put(owner identifier.Owner, category string, pk []string, data []byte) error {
	bucket, err := txn.createBucket(owner, category)

	if err != nil {
		return fmt.Errorf("could not create bucket for %s/%s: %w", owner, category, err)
	}

	return bucket.Put(keys.Encode(pk), data)
}

func (txn *BBoltTxn) Delete(owner identifier.Owner, category string, pk []string) error {
	bucket := txn.bucket(owner, category)

	if bucket == nil {
		return nil
	}

	return bucket.Delete(keys.Encode(pk))
}

func (txn *BBoltTxn) DeletePrefix(owner identifier.Owner, category string, prefix []string) error {
	if len(prefix) == 0 {
		ownerBucket := txn.ownerBucket(owner)

		if ownerBucket == nil {
			return nil
		}

		if err := ownerBucket.DeleteBucket(encodeName(category)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}

		return nil
	}

	bucket := txn.bucket(owner, category)

	if bucket == nil {
		return nil
	}

	r := keys.Prefix(prefix)
	cursor := bucket.Cursor()
	matches := [][]byte{}

	for k, _ := cursor.Seek(r.Min); k != nil && r.Contains(k); k, _ = cursor.Next() {
		matches = append(matches, append([]byte{}, k...))
	}

	for _, k := range matches {
		if err := bucket.Delete(k); err != nil {
			return err
		}
	}

	return nil
}

func (txn *BBoltTxn) DeleteOwner(owner identifier.Owner) error {
	names := txn.tx.Bucket(encodeName(owner.Name))

	if names == nil {
		return nil
	}

	if err := names.DeleteBucket(encodeName(owner.UniqueID)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
		return err
	}

	if k, _ := names.Cursor().First(); k == nil {
		return txn.tx.DeleteBucket(encodeName(owner.Name))
	}

	return nil
}
