package collstats

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/buger/jsonparser"
	"go.mongodb.org/mongo-driver/bson"
)

// ErrEmpty is returned when decoding input that holds no stats documents.
var ErrEmpty = errors.New("no $collStats documents")

// Decode decodes $collStats results from MongoDB Extended JSON, in either
// relaxed or canonical mode. data may be the array returned by the
// aggregation cursor or a single document.
func Decode(data []byte) ([]Stats, error) {
	docs, err := splitDocuments(data)
	if err != nil {
		return nil, err
	}

	res := make([]Stats, 0, len(docs))
	for i, doc := range docs {
		var s Stats
		if err := bson.UnmarshalExtJSON(doc, false, &s); err != nil {
			return nil, fmt.Errorf("decoding $collStats document %d: %w", i, err)
		}
		res = append(res, s)
	}
	return res, nil
}

// DecodeReader reads r until EOF and decodes its content with Decode.
func DecodeReader(r io.Reader) ([]Stats, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading $collStats documents: %w", err)
	}
	return Decode(buf)
}

// DecodeFile decodes the file at path with Decode.
func DecodeFile(path string) ([]Stats, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	stats, err := Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return stats, nil
}

// DecodeBSON decodes a raw BSON document, as returned by a driver cursor.
func DecodeBSON(raw bson.Raw) (Stats, error) {
	var s Stats
	if err := bson.Unmarshal(raw, &s); err != nil {
		return Stats{}, fmt.Errorf("decoding $collStats document: %w", err)
	}
	return s, nil
}

// Encode encodes stats as a relaxed Extended JSON array.
func Encode(stats []Stats) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := range stats {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := bson.MarshalExtJSON(&stats[i], false, false)
		if err != nil {
			return nil, fmt.Errorf("encoding $collStats document %d: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// EncodeIndent is like Encode but indents every nesting level with indent.
func EncodeIndent(stats []Stats, indent string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("[\n")
	for i := range stats {
		b, err := bson.MarshalExtJSONIndent(&stats[i], false, false, indent, indent)
		if err != nil {
			return nil, fmt.Errorf("encoding $collStats document %d: %w", i, err)
		}
		buf.WriteString(indent)
		buf.Write(b)
		if i < len(stats)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("]\n")
	return buf.Bytes(), nil
}

// splitDocuments returns the raw JSON of every document in data.
func splitDocuments(data []byte) ([][]byte, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	switch data[0] {
	case '{':
		return [][]byte{data}, nil
	case '[':
	default:
		return nil, fmt.Errorf("expected a JSON array or object, got %q", data[0])
	}

	var (
		docs    [][]byte
		elemErr error
	)
	_, err := jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		if elemErr != nil {
			return
		}
		switch {
		case err != nil:
			elemErr = err
		case dataType != jsonparser.Object:
			elemErr = fmt.Errorf("element at offset %d is a %s, expected an object", offset, dataType)
		default:
			docs = append(docs, value)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parsing document array: %w", err)
	}
	if elemErr != nil {
		return nil, fmt.Errorf("parsing document array: %w", elemErr)
	}
	if len(docs) == 0 {
		return nil, ErrEmpty
	}
	return docs, nil
}
