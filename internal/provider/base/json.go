package base

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// FlexString accepts a JSON string, number or null.
// Rails disagree on whether ids are numeric.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	*s = FlexString(string(b))
	return nil
}

func (s FlexString) String() string { return string(s) }

// FlexDecimal accepts a JSON number, a numeric string, an empty string or null.
type FlexDecimal struct {
	decimal.Decimal
}

func (d *FlexDecimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		d.Decimal = decimal.Zero
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		unq, err := strconv.Unquote(raw)
		if err != nil {
			return err
		}
		raw = unq
	}
	if raw == "" {
		d.Decimal = decimal.Zero
		return nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("amount %q: %w", raw, err)
	}
	d.Decimal = v
	return nil
}
