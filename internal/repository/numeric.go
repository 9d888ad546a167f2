package repository

import (
	"database/sql/driver"
	"fmt"
	"strconv"
)

// numeric maps a uint64 onto a NUMERIC(20,0) column; BIGINT cannot hold the full range.
type numeric uint64

func (n numeric) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(n), 10), nil
}

func (n *numeric) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n = 0
		return nil
	case int64:
		if v < 0 {
			return fmt.Errorf("negative numeric %d", v)
		}
		*n = numeric(v)
		return nil
	case []byte:
		return n.parse(string(v))
	case string:
		return n.parse(v)
	}
	return fmt.Errorf("cannot scan %T into numeric", src)
}

func (n *numeric) parse(s string) error {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse numeric %q: %w", s, err)
	}
	*n = numeric(u)
	return nil
}
