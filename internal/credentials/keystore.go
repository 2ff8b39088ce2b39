package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketCredentials = []byte("credentials")
	keyCurrent        = []byte("current")
)

// ErrNotFound indicates that the terminal has no stored credentials yet
var ErrNotFound = errors.New("no stored credentials")

// Stored учетные данные устройства в keystore. Токены хранятся запечатанными
// ключом, выведенным из секрета устройства; соль и идентификатор открыты.
type Stored struct {
	UpdatedAt    time.Time `json:"updated_at"`
	AccessToken  []byte    `json:"access_token"`
	RefreshToken []byte    `json:"refresh_token"`
	DeviceID     string    `json:"device_id"`
	PublicSalt   string    `json:"public_salt"`
	CloudURL     string    `json:"cloud_url"`
}

// Keystore файл bbolt с учетными данными терминала
type Keystore struct {
	db *bbolt.DB
}

// OpenKeystore открывает или создает keystore
func OpenKeystore(path string) (*Keystore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open keystore: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCredentials)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize keystore: %w", err)
	}

	return &Keystore{db: db}, nil
}

// Close closes the keystore file
func (k *Keystore) Close() error {
	if k.db == nil {
		return nil
	}
	return k.db.Close()
}

// Save сохраняет учетные данные
func (k *Keystore) Save(_ context.Context, s *Stored) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return k.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketCredentials).Put(keyCurrent, data); err != nil {
			return fmt.Errorf("failed to save credentials: %w", err)
		}
		return nil
	})
}

// Load возвращает сохраненные данные или ErrNotFound
func (k *Keystore) Load(_ context.Context) (*Stored, error) {
	var s *Stored
	err := k.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketCredentials).Get(keyCurrent)
		if data == nil {
			return ErrNotFound
		}
		s = &Stored{}
		if err := json.Unmarshal(data, s); err != nil {
			return fmt.Errorf("failed to unmarshal credentials: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Delete удаляет учетные данные
func (k *Keystore) Delete(_ context.Context) error {
	return k.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		if b.Get(keyCurrent) == nil {
			return ErrNotFound
		}
		return b.Delete(keyCurrent)
	})
}
