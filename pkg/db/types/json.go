package types

import (
	"database/sql/driver"
	"fmt"
)

// RawJSON stores a jsonb column without decoding it. Callers own
// deserialization, which lets them treat malformed documents as recoverable.
type RawJSON []byte

// Value marshals the raw document, defaulting empty values to a JSON array.
func (j RawJSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "[]", nil
	}
	return string(j), nil
}

// Scan accepts the driver's []byte or string representation.
func (j *RawJSON) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		buf := make([]byte, len(v))
		copy(buf, v)
		*j = buf
	case string:
		*j = []byte(v)
	default:
		return fmt.Errorf("rawjson: unsupported source type %T", value)
	}
	return nil
}
