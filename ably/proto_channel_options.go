package ably

// A ChannelOption configures a channel obtained from RESTChannels.Get.
type ChannelOption func(*channelOptions)

type channelOptions struct {
	Cipher *CipherParams
}

// ChannelWithCipherKey enables encryption with the default cipher parameters
// and the given key.
func ChannelWithCipherKey(key []byte) ChannelOption {
	return func(o *channelOptions) {
		o.Cipher = &CipherParams{Key: key}
	}
}

// ChannelWithCipher enables encryption with the given parameters.
func ChannelWithCipher(params CipherParams) ChannelOption {
	return func(o *channelOptions) {
		o.Cipher = &params
	}
}

func applyChannelOptions(os ...ChannelOption) *channelOptions {
	to := channelOptions{}
	for _, set := range os {
		set(&to)
	}
	return &to
}

// cipher builds the channel cipher, nil when encryption is off.
func (o *channelOptions) cipher() (channelCipher, error) {
	if o == nil || o.Cipher == nil {
		return nil, nil
	}
	c, err := newCBCCipher(*o.Cipher)
	if err != nil {
		return nil, newError(ErrInvalidParameterValue, err)
	}
	return c, nil
}
