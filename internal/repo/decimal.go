package repo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ToDecimalDocument converts a JSON document to BSON values, turning every
// number into a Decimal128 so no value passes through float64. Object key
// order is kept (bson.D).
func ToDecimalDocument(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := decodeDecimal(dec)
	if err != nil {
		return nil, fmt.Errorf("repo.ToDecimalDocument: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("repo.ToDecimalDocument: trailing data after document")
	}
	return v, nil
}

func decodeDecimal(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			doc := bson.D{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T", keyTok)
				}
				val, err := decodeDecimal(dec)
				if err != nil {
					return nil, err
				}
				doc = append(doc, bson.E{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return doc, nil
		case '[':
			arr := bson.A{}
			for dec.More() {
				val, err := decodeDecimal(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case json.Number:
		d, err := primitive.ParseDecimal128(t.String())
		if err != nil {
			return nil, fmt.Errorf("number %s: %w", t, err)
		}
		return d, nil
	default:
		// string, bool, nil
		return t, nil
	}
}

// FromDecimalDocument is the inverse of ToDecimalDocument: it renders BSON
// values read back from Mongo as JSON. Decimal128 values are written with
// their exact decimal text.
func FromDecimalDocument(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, fmt.Errorf("repo.FromDecimalDocument: %w", err)
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case primitive.D:
		buf.WriteByte('{')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(buf, e.Key); err != nil {
				return err
			}
			if err := writeJSON(buf, e.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case primitive.M:
		// Unordered; only produced when a caller decodes into bson.M.
		return writeJSON(buf, mapToD(t))
	case map[string]any:
		return writeJSON(buf, mapToD(t))
	case primitive.A:
		return writeArray(buf, t)
	case []any:
		return writeArray(buf, t)
	case primitive.Decimal128:
		buf.WriteString(t.String())
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}

func writeArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, item := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	b, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(b)
	buf.WriteByte(':')
	return nil
}

func mapToD(m map[string]any) primitive.D {
	d := make(primitive.D, 0, len(m))
	for k, v := range m {
		d = append(d, primitive.E{Key: k, Value: v})
	}
	return d
}
