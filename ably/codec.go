package ably

import (
	"encoding/json"
	"fmt"
	"mime"

	"github.com/ably/ably-rest-go/ably/internal/ablyutil"
)

func encode(typ string, in interface{}) ([]byte, error) {
	switch typ {
	case protocolJSON:
		return json.Marshal(in)
	case protocolMsgPack:
		return ablyutil.MarshalMsgpack(in)
	default:
		return nil, fmt.Errorf("encoding error: unrecognized Content-Type: %q", typ)
	}
}

func decode(typ string, data []byte, out interface{}) error {
	switch typ {
	case protocolJSON:
		return json.Unmarshal(data, out)
	case protocolMsgPack:
		return decodeMsgpack(data, out)
	default:
		return fmt.Errorf("decoding error: unrecognized Content-Type: %q", typ)
	}
}

func decodeMsgpack(data []byte, out interface{}) error {
	return ablyutil.UnmarshalMsgpack(data, out)
}

// mediaType strips parameters such as charset from a Content-Type value.
func mediaType(contentType string) string {
	typ, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	return typ
}
