// Package storage keeps uploaded binaries (store logos) in a bbolt file.
package storage

import (
	"errors"
	"path"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

const PublicPrefix = "/files"

var (
	ErrNotFound    = errors.New("object not found")
	ErrInvalidPath = errors.New("invalid object path")
)

type ObjectStore struct {
	db *bolt.DB
}

// Open opens (or creates) the object database at file
func Open(file string) (*ObjectStore, error) {
	db, err := bolt.Open(file, 0o600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &ObjectStore{db: db}, nil
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if key == "" || key == "." || strings.Contains(key, "..") {
		return "", ErrInvalidPath
	}
	return key, nil
}

// Put stores data under bucket/key, replacing any previous object
func (s *ObjectStore) Put(bucket, key string, data []byte) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// Get returns a copy of the object at bucket/key
func (s *ObjectStore) Get(bucket, key string) ([]byte, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

// Delete removes bucket/key; missing objects are not an error
func (s *ObjectStore) Delete(bucket, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// PublicURL is the path the web server serves bucket/key from
func (s *ObjectStore) PublicURL(bucket, key string) string {
	key, _ = cleanKey(key)
	return path.Join(PublicPrefix, bucket, key)
}

func (s *ObjectStore) Close() error {
	return s.db.Close()
}
