// Package crypto производные ключи устройства и шифрование локальных секретов
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// SaltSize размер публичной соли устройства
const SaltSize = 32

// KeySize длина производных ключей
const KeySize = 32

// ErrAuthKeyMismatch indicates that a presented auth key hash does not match the stored one
var ErrAuthKeyMismatch = errors.New("auth key mismatch")

// KDFParams параметры Argon2id
type KDFParams struct {
	Time    uint32
	Memory  uint32 // Memory в KiB
	Threads uint8
}

// DefaultKDF параметры для терминалов. Терминалы слабее рабочих станций,
// поэтому память ограничена 32 MiB.
var DefaultKDF = KDFParams{
	Time:    2,
	Memory:  32 * 1024,
	Threads: 2,
}

// DeviceKeys ключи, выведенные из секрета устройства.
// AuthKey никогда не покидает терминал: облако получает только его хеш.
type DeviceKeys struct {
	AuthKey    []byte
	StorageKey []byte // StorageKey шифрует токены в keystore
}

// NewSalt генерирует публичную соль устройства в base64
func NewSalt() (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}

// DeriveDeviceKeys выводит независимые ключи аутентификации и хранения.
// Идентификатор устройства входит в материал, поэтому одинаковые секреты
// разных терминалов дают разные ключи.
func DeriveDeviceKeys(secret, deviceID, saltB64 string, p KDFParams) (*DeviceKeys, error) {
	if secret == "" {
		return nil, errors.New("device secret cannot be empty")
	}
	if deviceID == "" {
		return nil, errors.New("device id cannot be empty")
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}

	derive := func(purpose string) []byte {
		material := []byte("possync/" + purpose + "\x00" + deviceID + "\x00" + secret)
		return argon2.IDKey(material, salt, p.Time, p.Memory, p.Threads, KeySize)
	}

	return &DeviceKeys{
		AuthKey:    derive("auth"),
		StorageKey: derive("storage"),
	}, nil
}

// AuthKeyHash hex SHA-256 от auth key; это значение хранит облако
func (k *DeviceKeys) AuthKeyHash() string {
	sum := sha256.Sum256(k.AuthKey)
	return hex.EncodeToString(sum[:])
}

// CompareAuthKeyHash сравнивает хеши за постоянное время
func CompareAuthKeyHash(presented, stored string) error {
	if presented == "" || stored == "" {
		return ErrAuthKeyMismatch
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) != 1 {
		return ErrAuthKeyMismatch
	}
	return nil
}
