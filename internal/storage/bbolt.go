package storage

import (
	"fmt"
	"time"

	"govorilka/internal/models"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	bucketProfile       = []byte("profile")
	bucketSubscriptions = []byte("subscriptions")
)

// BboltStorage is the local profile store. It holds the user profile
// and push subscriptions only; chat history is never persisted.
type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketProfile); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketSubscriptions); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// SaveProfile stores the local user profile.
func (s *BboltStorage) SaveProfile(userName, lastRoom string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketProfile)
		profile := &DBProfile{
			UserName:  userName,
			LastRoom:  lastRoom,
			UpdatedAt: time.Now().Unix(),
		}
		data, err := profile.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(profile.Key(), data)
	})
}

// GetProfile returns the stored profile, or models.ErrNotFound if none
// was saved yet.
func (s *BboltStorage) GetProfile() (DBProfile, error) {
	var profile DBProfile
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketProfile)
		data := b.Get(profileKey)
		if data == nil {
			return models.ErrNotFound
		}
		return profile.UnmarshalBinary(data)
	})
	return profile, err
}

// AddSubscription stores a push delivery target and returns its id.
func (s *BboltStorage) AddSubscription(endpoint, p256dh, auth string) (string, error) {
	sub := &DBSubscription{
		ID:        uuid.NewString(),
		Endpoint:  endpoint,
		P256dh:    p256dh,
		Auth:      auth,
		CreatedAt: time.Now().Unix(),
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSubscriptions)
		data, err := sub.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(sub.Key(), data)
	})
	if err != nil {
		return "", err
	}
	return sub.ID, nil
}

// ListSubscriptions returns all stored push subscriptions.
func (s *BboltStorage) ListSubscriptions() ([]DBSubscription, error) {
	var subs []DBSubscription
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSubscriptions)
		return b.ForEach(func(k, v []byte) error {
			var sub DBSubscription
			if err := sub.UnmarshalBinary(v); err != nil {
				return err
			}
			subs = append(subs, sub)
			return nil
		})
	})
	return subs, err
}

// RemoveSubscription deletes a push subscription by id. Used when a
// push endpoint reports itself gone.
func (s *BboltStorage) RemoveSubscription(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSubscriptions).Delete([]byte(id))
	})
}
