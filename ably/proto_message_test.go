package ably_test

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/ably/ably-rest-go/ably"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testCipherKey = []byte("0123456789abcdef")
	testIV        = []byte("fedcba9876543210")
)

func TestMessage_EncodeData(t *testing.T) {
	tests := []struct {
		name     string
		data     interface{}
		binary   bool
		wantData interface{}
		wantEnc  string
	}{
		{"string", "hello", false, "hello", ""},
		{"nil", nil, false, nil, ""},
		{"bytes over json", []byte{0xff, 0x00}, false, base64.StdEncoding.EncodeToString([]byte{0xff, 0x00}), "base64"},
		{"bytes over msgpack", []byte{0xff, 0x00}, true, []byte{0xff, 0x00}, ""},
		{"invalid utf-8 string", string([]byte{0xff, 0xfe}), false, base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe}), "base64"},
		{"object", map[string]interface{}{"a": 1}, false, `{"a":1}`, "json"},
		{"array", []int{1, 2}, true, `[1,2]`, "json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ably.EncodeMessage(ably.Message{Data: tt.data}, nil, tt.binary)
			require.NoError(t, err)
			assert.Equal(t, tt.wantData, m.Data)
			assert.Equal(t, tt.wantEnc, m.Encoding)
		})
	}

	t.Run("scalars are rejected", func(t *testing.T) {
		for _, data := range []interface{}{42, true, 1.5} {
			_, err := ably.EncodeMessage(ably.Message{Data: data}, nil, false)
			assert.Equal(t, ably.ErrInvalidMessageDataOrEncoding, ably.UnwrapErrorCode(err), "%T", data)
		}
	})

	t.Run("existing encoding is extended", func(t *testing.T) {
		m, err := ably.EncodeMessage(ably.Message{Data: []byte("x"), Encoding: "custom"}, nil, false)
		require.NoError(t, err)
		assert.Equal(t, "custom/base64", m.Encoding)
	})
}

func TestMessage_DecodeData(t *testing.T) {
	tests := []struct {
		name     string
		in       ably.Message
		wantData interface{}
	}{
		{"plain", ably.Message{Data: "hello"}, "hello"},
		{"base64", ably.Message{Data: "AAEC", Encoding: "base64"}, []byte{0, 1, 2}},
		{"json", ably.Message{Data: `{"a":"b"}`, Encoding: "json"}, map[string]interface{}{"a": "b"}},
		{"utf-8 over base64", ably.Message{Data: base64.StdEncoding.EncodeToString([]byte("héllo")), Encoding: "utf-8/base64"}, "héllo"},
		{"json over base64", ably.Message{Data: base64.StdEncoding.EncodeToString([]byte(`[1]`)), Encoding: "json/utf-8/base64"}, []interface{}{float64(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ably.DecodeMessage(tt.in, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantData, m.Data)
			assert.Empty(t, m.Encoding)
		})
	}

	t.Run("unknown encoding", func(t *testing.T) {
		_, err := ably.DecodeMessage(ably.Message{Data: "AAEC", Encoding: "rot13/base64"}, nil, nil)
		var info *ably.ErrorInfo
		require.ErrorAs(t, err, &info)
		assert.Equal(t, ably.ErrInvalidMessageDataOrEncoding, info.Code)
		assert.Contains(t, info.Message(), "rot13")
	})

	t.Run("malformed base64", func(t *testing.T) {
		_, err := ably.DecodeMessage(ably.Message{Data: "!!!", Encoding: "base64"}, nil, nil)
		assert.Equal(t, ably.ErrInvalidMessageDataOrEncoding, ably.UnwrapErrorCode(err))
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := ably.DecodeMessage(ably.Message{Data: "{", Encoding: "json"}, nil, nil)
		assert.Equal(t, ably.ErrInvalidMessageDataOrEncoding, ably.UnwrapErrorCode(err))
	})
}

func TestMessage_Cipher(t *testing.T) {
	params := ably.CipherParamsWithIV(ably.CipherParams{Key: testCipherKey}, testIV)

	t.Run("string round trip", func(t *testing.T) {
		enc, err := ably.EncodeMessage(ably.Message{Data: "secret message"}, &params, false)
		require.NoError(t, err)
		assert.Equal(t, "utf-8/cipher+aes-128-cbc/base64", enc.Encoding)

		raw, err := base64.StdEncoding.DecodeString(enc.Data.(string))
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(raw, testIV), "the IV is prepended to the ciphertext")
		assert.Len(t, raw, 32, "IV plus one padded block")

		dec, err := ably.DecodeMessage(enc, &params, nil)
		require.NoError(t, err)
		assert.Equal(t, "secret message", dec.Data)
		assert.Empty(t, dec.Encoding)
	})

	t.Run("object over msgpack", func(t *testing.T) {
		enc, err := ably.EncodeMessage(ably.Message{Data: map[string]interface{}{"k": "v"}}, &params, true)
		require.NoError(t, err)
		assert.Equal(t, "json/utf-8/cipher+aes-128-cbc", enc.Encoding)
		assert.IsType(t, []byte(nil), enc.Data)

		dec, err := ably.DecodeMessage(enc, &params, nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"k": "v"}, dec.Data)
	})

	t.Run("bytes keep no utf-8 step", func(t *testing.T) {
		enc, err := ably.EncodeMessage(ably.Message{Data: []byte{1, 2, 3}}, &params, false)
		require.NoError(t, err)
		assert.Equal(t, "cipher+aes-128-cbc/base64", enc.Encoding)
		dec, err := ably.DecodeMessage(enc, &params, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, dec.Data)
	})

	t.Run("random IV", func(t *testing.T) {
		random := ably.CipherParams{Key: testCipherKey}
		a, err := ably.EncodeMessage(ably.Message{Data: "same"}, &random, true)
		require.NoError(t, err)
		b, err := ably.EncodeMessage(ably.Message{Data: "same"}, &random, true)
		require.NoError(t, err)
		assert.NotEqual(t, a.Data, b.Data)
	})

	enc, err := ably.EncodeMessage(ably.Message{Data: "secret"}, &params, false)
	require.NoError(t, err)

	t.Run("no cipher configured", func(t *testing.T) {
		_, err := ably.DecodeMessage(enc, nil, nil)
		var decErr *ably.DecryptionError
		require.ErrorAs(t, err, &decErr)
		assert.Equal(t, "cipher+aes-128-cbc", decErr.Encoding)
	})

	t.Run("different algorithm", func(t *testing.T) {
		other := ably.CipherParams{Key: bytes.Repeat([]byte{7}, 32)}
		_, err := ably.DecodeMessage(enc, &other, nil)
		var decErr *ably.DecryptionError
		assert.ErrorAs(t, err, &decErr)
	})

	t.Run("truncated ciphertext", func(t *testing.T) {
		bad := ably.Message{
			Data:     base64.StdEncoding.EncodeToString(make([]byte, 20)),
			Encoding: "cipher+aes-128-cbc/base64",
		}
		_, err := ably.DecodeMessage(bad, &params, nil)
		var decErr *ably.DecryptionError
		assert.ErrorAs(t, err, &decErr)
	})

	t.Run("invalid key length", func(t *testing.T) {
		bad := ably.CipherParams{Key: []byte("short")}
		_, err := ably.EncodeMessage(ably.Message{Data: "x"}, &bad, false)
		assert.Error(t, err)
	})
}

func TestCrypto(t *testing.T) {
	key, err := ably.Crypto.GenerateRandomKey(0)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	key, err = ably.Crypto.GenerateRandomKey(128)
	require.NoError(t, err)
	assert.Len(t, key, 16)

	_, err = ably.Crypto.GenerateRandomKey(100)
	assert.Error(t, err)

	params, err := ably.Crypto.GetDefaultParams(ably.CipherParams{Key: key})
	require.NoError(t, err)
	assert.Equal(t, ably.CipherAES, params.Algorithm)
	assert.Equal(t, ably.CipherCBC, params.Mode)
	assert.Equal(t, 128, params.KeyLength)

	_, err = ably.Crypto.GetDefaultParams(ably.CipherParams{})
	assert.Error(t, err)
}

// echoDecoder gives the delta as the decoded payload.
type echoDecoder struct {
	err error
}

func (d echoDecoder) Decode(delta, base []byte) ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	return append(append([]byte(nil), base...), delta...), nil
}

func TestMessage_Delta(t *testing.T) {
	deltaFrom := func(id string) map[string]interface{} {
		return map[string]interface{}{"delta": map[string]interface{}{"from": id, "format": "vcdiff"}}
	}

	t.Run("applies against the previous payload", func(t *testing.T) {
		dctx := &ably.DecodingContext{VCDiffPlugin: echoDecoder{}}
		first, err := ably.DecodeMessage(ably.Message{ID: "m1", Data: "base"}, nil, dctx)
		require.NoError(t, err)
		assert.Equal(t, "base", first.Data)
		assert.Equal(t, []byte("base"), dctx.BasePayload)
		assert.Equal(t, "m1", dctx.LastMessageID)

		second, err := ably.DecodeMessage(ably.Message{
			ID:       "m2",
			Data:     base64.StdEncoding.EncodeToString([]byte("+delta")),
			Encoding: "utf-8/vcdiff/base64",
			Extras:   deltaFrom("m1"),
		}, nil, dctx)
		require.NoError(t, err)
		assert.Equal(t, "base+delta", second.Data)
		assert.Equal(t, []byte("base+delta"), dctx.BasePayload)
		assert.Equal(t, "m2", dctx.LastMessageID)
	})

	t.Run("json payload keeps its wire form as base", func(t *testing.T) {
		dctx := &ably.DecodingContext{VCDiffPlugin: echoDecoder{}}
		_, err := ably.DecodeMessage(ably.Message{ID: "m1", Data: `{"a":1}`, Encoding: "json"}, nil, dctx)
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"a":1}`), dctx.BasePayload)
	})

	failures := []struct {
		name string
		dctx *ably.DecodingContext
		m    ably.Message
	}{
		{"no plugin", &ably.DecodingContext{BasePayload: []byte("b")}, ably.Message{Data: []byte("d"), Encoding: "vcdiff"}},
		{"no context", nil, ably.Message{Data: []byte("d"), Encoding: "vcdiff"}},
		{"no base", &ably.DecodingContext{VCDiffPlugin: echoDecoder{}}, ably.Message{Data: []byte("d"), Encoding: "vcdiff"}},
		{
			"wrong base message",
			&ably.DecodingContext{VCDiffPlugin: echoDecoder{}, BasePayload: []byte("b"), LastMessageID: "m1"},
			ably.Message{Data: []byte("d"), Encoding: "vcdiff", Extras: deltaFrom("m0")},
		},
		{
			"decoder failure",
			&ably.DecodingContext{VCDiffPlugin: echoDecoder{err: errors.New("corrupt")}, BasePayload: []byte("b")},
			ably.Message{Data: []byte("d"), Encoding: "vcdiff"},
		},
		{
			"real decoder on garbage",
			&ably.DecodingContext{VCDiffPlugin: ably.NewVCDiffPlugin(), BasePayload: []byte("hello world")},
			ably.Message{Data: []byte("this is not valid vcdiff data"), Encoding: "vcdiff"},
		},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ably.DecodeMessage(tt.m, nil, tt.dctx)
			assert.Equal(t, ably.ErrDeltaDecodingFailed, ably.UnwrapErrorCode(err))
		})
	}
}

func TestMessagesFromEncoded(t *testing.T) {
	msgs, err := ably.MessagesFromEncoded([]byte(`[{"name":"a","data":"AAE=","encoding":"base64"},{"name":"b","data":"x"}]`), nil, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte{0, 1}, msgs[0].Data)
	assert.Equal(t, "x", msgs[1].Data)

	msgs, err = ably.MessagesFromEncoded([]byte(`{"name":"single","data":"{}","encoding":"json"}`), nil, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, map[string]interface{}{}, msgs[0].Data)

	_, err = ably.MessagesFromEncoded([]byte(`not json`), nil, nil)
	assert.Equal(t, ably.ErrInvalidMessageDataOrEncoding, ably.UnwrapErrorCode(err))

	params := ably.CipherParamsWithIV(ably.CipherParams{Key: testCipherKey}, testIV)
	enc, err := ably.EncodeMessage(ably.Message{Name: "c", Data: "hidden"}, &params, false)
	require.NoError(t, err)
	payload := []byte(`{"name":"c","data":"` + enc.Data.(string) + `","encoding":"` + enc.Encoding + `"}`)
	msgs, err = ably.MessagesFromEncoded(payload, &params, nil)
	require.NoError(t, err)
	assert.Equal(t, "hidden", msgs[0].Data)
}
