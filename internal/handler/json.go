package handler

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

const (
	maxBodySize = 1 << 20
	timeLayout  = time.RFC3339
	dateLayout  = time.DateOnly
)

var errPathNotFound = apperr.NotFound("", "not found")

// writeJSON writes the object produced by fn with status.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeList writes items as a JSON array.
func writeList[T any](w http.ResponseWriter, items []T, fn func(e *jx.Encoder, item T)) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, item := range items {
				fn(e, item)
			}
		})
	})
}

// decodeBody reads a JSON object from r, calling fn for every key.
// Malformed input is reported as a validation error.
func decodeBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return apperr.Validation("", "request body could not be read")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return apperr.Validation("", "request body is required")
	}
	if err := jx.DecodeBytes(body).Obj(fn); err != nil {
		if _, ok := apperr.As(err); ok {
			return err
		}
		return apperr.Validation("", "malformed JSON: "+err.Error())
	}
	return nil
}

// invalid reports a type mismatch on field.
func invalid(field string, err error) error {
	if err == nil {
		return nil
	}
	return apperr.Validation(field, "invalid value: "+err.Error())
}

func decodeString(d *jx.Decoder, field string, dst *string) error {
	v, err := d.Str()
	if err != nil {
		return invalid(field, err)
	}
	*dst = v
	return nil
}

func decodeInt(d *jx.Decoder, field string, dst *int) error {
	v, err := d.Int()
	if err != nil {
		return invalid(field, err)
	}
	*dst = v
	return nil
}

func decodeInt64(d *jx.Decoder, field string, dst *int64) error {
	v, err := d.Int64()
	if err != nil {
		return invalid(field, err)
	}
	*dst = v
	return nil
}

// decodeOptionalInt64 decodes a nullable integer.
func decodeOptionalInt64(d *jx.Decoder, field string, dst **int64) error {
	if d.Next() == jx.Null {
		*dst = nil
		return invalid(field, d.Null())
	}
	var v int64
	if err := decodeInt64(d, field, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

func decodeInt64s(d *jx.Decoder, field string, dst *[]int64) error {
	ids := []int64{}
	err := d.Arr(func(d *jx.Decoder) error {
		v, err := d.Int64()
		if err != nil {
			return err
		}
		ids = append(ids, v)
		return nil
	})
	if err != nil {
		return invalid(field, err)
	}
	*dst = ids
	return nil
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder, field string, dst *decimal.Decimal) error {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return invalid(field, err)
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return invalid(field, err)
		}
		raw = n.String()
	default:
		return apperr.Validation(field, "a valid number is required")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return apperr.Validation(field, "a valid number is required")
	}
	*dst = v
	return nil
}

func decodeFloat(d *jx.Decoder, field string, dst *float64) error {
	v, err := d.Float64()
	if err != nil {
		return invalid(field, err)
	}
	*dst = v
	return nil
}

// money encodes v with exactly two decimal places.
func money(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.StringFixed(2))
}

// pathInt64 parses the positive integer path value name. Malformed ids
// address nothing, so they are reported as not found.
func pathInt64(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errPathNotFound
	}
	return id, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, errPathNotFound
	}
	return id, nil
}

// queryInt64 parses an optional positive integer query parameter.
func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, apperr.Validation(name, "a valid integer is required")
	}
	return v, nil
}

// required reports the first key of fields that seen lacks.
func required(seen map[string]bool, fields ...string) error {
	for _, f := range fields {
		if !seen[f] {
			return apperr.Validation(f, "this field is required")
		}
	}
	return nil
}
