package ably

import (
	"github.com/ably/vcdiff-go"
)

// VCDiffDecoder applies a vcdiff delta to a base payload.
type VCDiffDecoder interface {
	Decode(delta []byte, base []byte) ([]byte, error)
}

// AblyVCDiffDecoder is the VCDiffDecoder backed by github.com/ably/vcdiff-go.
type AblyVCDiffDecoder struct{}

func (AblyVCDiffDecoder) Decode(delta []byte, base []byte) ([]byte, error) {
	return vcdiff.Decode(base, delta)
}

// NewVCDiffPlugin gives the default vcdiff decoder, for use with
// WithVCDiffPlugin or a DecodingContext.
//
//	client, err := ably.NewREST(ably.WithKey(key), ably.WithVCDiffPlugin(ably.NewVCDiffPlugin()))
func NewVCDiffPlugin() VCDiffDecoder {
	return AblyVCDiffDecoder{}
}
