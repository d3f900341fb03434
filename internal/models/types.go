package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type StringArray []string

func (sa StringArray) Value() (driver.Value, error) {
	if len(sa) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(sa)
}

func (sa *StringArray) Scan(value interface{}) error {
	data, err := scanBytes(value)
	if err != nil {
		return fmt.Errorf("StringArray: %w", err)
	}
	if len(data) == 0 {
		*sa = nil
		return nil
	}
	return json.Unmarshal(data, sa)
}

// StringMap holds a question -> answer map in a jsonb column.
type StringMap map[string]string

func (sm StringMap) Value() (driver.Value, error) {
	if len(sm) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(sm)
}

func (sm *StringMap) Scan(value interface{}) error {
	data, err := scanBytes(value)
	if err != nil {
		return fmt.Errorf("StringMap: %w", err)
	}
	if len(data) == 0 {
		*sm = nil
		return nil
	}
	return json.Unmarshal(data, sm)
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}
