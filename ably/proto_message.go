package ably

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// encodings
const (
	encUTF8   = "utf-8"
	encJSON   = "json"
	encBase64 = "base64"
	encCipher = "cipher"
	encVCDiff = "vcdiff"
)

// Message contains an individual message that is sent to, or received from, Ably.
type Message struct {
	// ID is a unique identifier for this message. It is assigned by Ably
	// unless idempotent publishing is enabled, in which case the library sets it.
	ID string `json:"id,omitempty" codec:"id,omitempty"`
	// ClientID of the publisher of this message.
	ClientID string `json:"clientId,omitempty" codec:"clientId,omitempty"`
	// ConnectionID of the publisher of this message.
	ConnectionID string `json:"connectionId,omitempty" codec:"connectionId,omitempty"`
	// Name is the event name.
	Name string `json:"name,omitempty" codec:"name,omitempty"`
	// Data is the message payload: a string, a []byte, or a value that encodes
	// as a JSON object or array.
	Data interface{} `json:"data,omitempty" codec:"data,omitempty"`
	// Encoding is empty for decoded messages. Otherwise it lists the
	// transformations still applied to Data, separated by slashes.
	Encoding string `json:"encoding,omitempty" codec:"encoding,omitempty"`
	// Timestamp of when the message was received by Ably, as milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp,omitempty" codec:"timestamp,omitempty"`
	// Extras is a JSON object of arbitrary key-value pairs that may contain
	// metadata and ancillary payloads such as push or delta.
	Extras map[string]interface{} `json:"extras,omitempty" codec:"extras,omitempty"`
}

func (m Message) String() string {
	return fmt.Sprintf("<Message %q data=%v>", m.Name, m.Data)
}

// DeltaExtras describes a message whose payload is a "vcdiff" delta against
// the payload of a previous message.
type DeltaExtras struct {
	From   string
	Format string
}

func extractDeltaExtras(extras map[string]interface{}) DeltaExtras {
	delta, ok := extras["delta"].(map[string]interface{})
	if !ok {
		return DeltaExtras{}
	}
	var d DeltaExtras
	d.From, _ = delta["from"].(string)
	d.Format, _ = delta["format"].(string)
	return d
}

// DecodingContext carries the state needed to decode a sequence of delta
// encoded messages. It is updated by every message decoded with it.
type DecodingContext struct {
	// VCDiffPlugin decodes vcdiff deltas.
	VCDiffPlugin VCDiffDecoder
	// BasePayload is the payload the next delta applies to.
	BasePayload []byte
	// LastMessageID is the ID of the message BasePayload belongs to.
	LastMessageID string
}

func unencodableDataErr(data interface{}) error {
	return fmt.Errorf("message data type %T must be string, []byte, or a value that can be encoded as a JSON object or array", data)
}

// withEncodedData encodes Data for the wire: strings are sent as they are,
// binary data is base64 encoded unless the wire protocol is binary, and
// anything else must encode as a JSON object or array. With a cipher the
// result is then encrypted.
func (m Message) withEncodedData(cipher channelCipher, binaryProtocol bool) (Message, error) {
	if m.Data == nil {
		return m, nil
	}

	// Strings that aren't valid UTF-8 are binary.
	if d, ok := m.Data.(string); ok && !utf8.ValidString(d) {
		m.Data = []byte(d)
	}

	switch d := m.Data.(type) {
	case string, []byte:
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return Message{}, newError(ErrInvalidMessageDataOrEncoding, fmt.Errorf("%s; encoding as JSON: %w", unencodableDataErr(d), err))
		}
		token, _ := json.NewDecoder(bytes.NewReader(b)).Token()
		if token != json.Delim('[') && token != json.Delim('{') {
			return Message{}, newError(ErrInvalidMessageDataOrEncoding, fmt.Errorf("%s; encoded as JSON %T", unencodableDataErr(d), token))
		}
		m.Data = string(b)
		m.Encoding = mergeEncoding(m.Encoding, encJSON)
	}

	if cipher != nil {
		bs, _ := coerceBytes(m.Data)
		e, err := cipher.Encrypt(bs)
		if err != nil {
			return Message{}, newError(ErrInvalidMessageDataOrEncoding, fmt.Errorf("encrypting message data: %w", err))
		}
		// The utf-8 step tells the decoder to turn the decrypted bytes back
		// into a string.
		if _, ok := m.Data.(string); ok {
			m.Encoding = mergeEncoding(m.Encoding, encUTF8)
		}
		m.Data = e
		m.Encoding = mergeEncoding(m.Encoding, cipher.GetAlgorithm())
	}

	if d, ok := m.Data.([]byte); ok && !binaryProtocol {
		m.Data = base64.StdEncoding.EncodeToString(d)
		m.Encoding = mergeEncoding(m.Encoding, encBase64)
	}
	return m, nil
}

// withDecodedData undoes the transformations listed in Encoding, last first.
// It either decodes the message fully or fails; a failure to decrypt is
// reported as a *DecryptionError.
func (m Message) withDecodedData(cipher channelCipher, dctx *DecodingContext) (Message, error) {
	lastPayload, _ := coerceBytes(m.Data)
	if m.Data != nil && m.Encoding != "" {
		encodings := strings.Split(m.Encoding, "/")
		for len(encodings) > 0 {
			encoding := encodings[len(encodings)-1]
			encodings = encodings[:len(encodings)-1]
			switch {
			case encoding == encBase64:
				d, err := coerceString(m.Data)
				if err != nil {
					return Message{}, newError(ErrInvalidMessageDataOrEncoding, err)
				}
				data, err := base64.StdEncoding.DecodeString(d)
				if err != nil {
					return Message{}, newError(ErrInvalidMessageDataOrEncoding, err)
				}
				m.Data = data
				lastPayload = data
			case encoding == encUTF8:
				d, err := coerceString(m.Data)
				if err != nil {
					return Message{}, newError(ErrInvalidMessageDataOrEncoding, err)
				}
				m.Data = d
			case encoding == encJSON:
				d, err := coerceBytes(m.Data)
				if err != nil {
					return Message{}, newError(ErrInvalidMessageDataOrEncoding, err)
				}
				var result interface{}
				if err := json.Unmarshal(d, &result); err != nil {
					return Message{}, newError(ErrInvalidMessageDataOrEncoding, fmt.Errorf("unmarshaling JSON payload: %w", err))
				}
				m.Data = result
			case encoding == encVCDiff:
				data, err := m.applyDelta(dctx)
				if err != nil {
					return Message{}, err
				}
				m.Data = data
				lastPayload = data
			case strings.HasPrefix(encoding, encCipher+"+"):
				if cipher == nil {
					return Message{}, &DecryptionError{Encoding: encoding, Err: errors.New("no cipher configured for the channel")}
				}
				if cipher.GetAlgorithm() != encoding {
					return Message{}, &DecryptionError{Encoding: encoding, Err: fmt.Errorf("channel cipher is %s", cipher.GetAlgorithm())}
				}
				d, err := coerceBytes(m.Data)
				if err != nil {
					return Message{}, &DecryptionError{Encoding: encoding, Err: err}
				}
				d, err = cipher.Decrypt(d)
				if err != nil {
					return Message{}, &DecryptionError{Encoding: encoding, Err: err}
				}
				m.Data = d
			default:
				return Message{}, newErrorf(ErrInvalidMessageDataOrEncoding, "unknown encoding %q", encoding)
			}
			m.Encoding = strings.Join(encodings, "/")
		}
	}
	if dctx != nil {
		dctx.BasePayload = lastPayload
		dctx.LastMessageID = m.ID
	}
	return m, nil
}

func (m Message) applyDelta(dctx *DecodingContext) ([]byte, error) {
	if dctx == nil || dctx.VCDiffPlugin == nil {
		return nil, newErrorf(ErrDeltaDecodingFailed, "missing VCDiff decoder plugin")
	}
	if dctx.BasePayload == nil {
		return nil, newErrorf(ErrDeltaDecodingFailed, "no base payload available")
	}
	if from := extractDeltaExtras(m.Extras).From; from != "" && from != dctx.LastMessageID {
		return nil, newErrorf(ErrDeltaDecodingFailed, "delta is against message %q but the last message was %q", from, dctx.LastMessageID)
	}
	delta, err := coerceBytes(m.Data)
	if err != nil {
		return nil, newError(ErrDeltaDecodingFailed, err)
	}
	result, err := dctx.VCDiffPlugin.Decode(delta, dctx.BasePayload)
	if err != nil {
		return nil, newErrorf(ErrDeltaDecodingFailed, "vcdiff decode failed: %w", err)
	}
	return result, nil
}

// MessagesFromEncoded decodes messages received outside of this client, such
// as the payload of a webhook or an integration. encoded holds a JSON array of
// messages or a single message. cipher and dctx may be nil.
func MessagesFromEncoded(encoded []byte, cipher *CipherParams, dctx *DecodingContext) ([]*Message, error) {
	raw, err := unmarshalEncodedMessages(encoded)
	if err != nil {
		return nil, err
	}
	var c channelCipher
	if cipher != nil {
		if c, err = newCBCCipher(*cipher); err != nil {
			return nil, err
		}
	}
	return decodeMessages(raw, c, dctx)
}

func unmarshalEncodedMessages(encoded []byte) ([]*Message, error) {
	var raw []*Message
	if err := json.Unmarshal(encoded, &raw); err != nil {
		var single Message
		if err := json.Unmarshal(encoded, &single); err != nil {
			return nil, newError(ErrInvalidMessageDataOrEncoding, err)
		}
		raw = []*Message{&single}
	}
	return raw, nil
}

func decodeMessages(msgs []*Message, cipher channelCipher, dctx *DecodingContext) ([]*Message, error) {
	out := make([]*Message, len(msgs))
	for i, m := range msgs {
		decoded, err := m.withDecodedData(cipher, dctx)
		if err != nil {
			return nil, err
		}
		out[i] = &decoded
	}
	return out, nil
}

func coerceString(i interface{}) (string, error) {
	switch v := i.(type) {
	case []byte:
		return string(v), nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("expected string or []byte data, got %T", i)
	}
}

func coerceBytes(i interface{}) ([]byte, error) {
	switch v := i.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("expected string or []byte data, got %T", i)
	}
}

func mergeEncoding(a string, b string) string {
	if a == "" {
		return b
	}
	return a + "/" + b
}
