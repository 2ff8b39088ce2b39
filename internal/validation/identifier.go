package validation

import (
	"fmt"
	"regexp"
)

// IdentifierPattern определяет допустимый формат имени таблицы или колонки.
// Имена таблиц подставляются в SQL напрямую, поэтому разрешены только
// строчные латинские буквы, цифры и нижнее подчеркивание, первый символ - буква.
var IdentifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

const (
	// MaxIdentifierLen максимальная длина идентификатора
	MaxIdentifierLen = 63
	// MaxRecordIDLen максимальная длина идентификатора записи
	MaxRecordIDLen = 128
)

// ValidateTableName проверяет, что имя таблицы безопасно для подстановки в SQL
func ValidateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("table name cannot be empty")
	}

	if len(name) > MaxIdentifierLen {
		return fmt.Errorf("table name must not exceed %d characters", MaxIdentifierLen)
	}

	if !IdentifierPattern.MatchString(name) {
		return fmt.Errorf("table name can only contain lowercase letters, digits and underscores and must start with a letter")
	}

	return nil
}

// ValidateRecordID проверяет идентификатор записи
func ValidateRecordID(id string) error {
	if id == "" {
		return fmt.Errorf("record id cannot be empty")
	}

	if len(id) > MaxRecordIDLen {
		return fmt.Errorf("record id must not exceed %d characters", MaxRecordIDLen)
	}

	return nil
}

// ValidateDeviceSecret проверяет минимальные требования к секрету устройства
func ValidateDeviceSecret(secret string) error {
	const minSecretLen = 12

	if secret == "" {
		return fmt.Errorf("device secret cannot be empty")
	}

	if len(secret) < minSecretLen {
		return fmt.Errorf("device secret must be at least %d characters long", minSecretLen)
	}

	return nil
}

// DevicePattern формат идентификатора устройства
var DevicePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateDeviceID проверяет идентификатор устройства
func ValidateDeviceID(id string) error {
	if len(id) < 3 {
		return fmt.Errorf("device id must be at least 3 characters long")
	}

	if len(id) > MaxIdentifierLen {
		return fmt.Errorf("device id must not exceed %d characters", MaxIdentifierLen)
	}

	if !DevicePattern.MatchString(id) {
		return fmt.Errorf("device id can only contain letters, digits, underscores and hyphens")
	}

	return nil
}
