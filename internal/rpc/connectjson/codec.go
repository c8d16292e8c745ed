package connectjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bufbuild/connect-go"
)

// Codec carries the plain Go task messages as JSON on Connect streams, so the
// service needs no protobuf definitions.
type Codec struct{}

func (Codec) Name() string {
	return "json"
}

func (Codec) Marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, errors.New("connectjson: marshal nil message")
	}
	return json.Marshal(v)
}

// Unmarshal decodes one message. Unknown fields are ignored; an empty frame
// is an error.
func (Codec) Unmarshal(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("connectjson: empty message")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("connectjson: decode %T: %w", v, err)
	}
	return nil
}

var _ connect.Codec = (*Codec)(nil)
