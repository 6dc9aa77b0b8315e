package ablyutil

import (
	"bytes"
	"reflect"

	"github.com/ugorji/go/codec"
)

var handle codec.MsgpackHandle

func init() {
	// Distinguish str from bin on the wire, so text payloads don't come back
	// as byte slices.
	handle.WriteExt = true
	handle.RawToString = true
	// Maps decoded into interface{} values must be re-encodable as JSON.
	handle.MapType = reflect.TypeOf(map[string]interface{}(nil))
}

// UnmarshalMsgpack decodes the MessagePack-encoded data and stores the result
// in the value pointed to by v.
func UnmarshalMsgpack(data []byte, v interface{}) error {
	return codec.NewDecoderBytes(data, &handle).Decode(v)
}

// MarshalMsgpack returns the msgpack encoding of v.
func MarshalMsgpack(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.NewEncoder(&buf, &handle).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
