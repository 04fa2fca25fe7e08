package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Pagination represents common pagination parameters
type Pagination struct {
	Limit  int `json:"limit" form:"limit"`
	Offset int `json:"offset" form:"offset"`
}

// Normalize clamps the page window to sane bounds.
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 || p.Limit > 200 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Period is an inclusive reporting window.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// StringList is a list of strings persisted as a JSON array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (l *StringList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode string list: %w", err)
	}
	*l = out
	return nil
}

// JSONMap represents a generic JSON object
type JSONMap map[string]interface{}

func Int64Ptr(v int64) *int64 { return &v }

func StringPtr(v string) *string { return &v }

func TimePtr(v time.Time) *time.Time { return &v }
