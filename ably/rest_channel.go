package ably

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/ably/ably-rest-go/ably/internal/ablyutil"
	"github.com/go4org/hashtriemap"
)

// based on HttpUtils::encodeURIComponent from ably-java library
var encodeURIComponent = strings.NewReplacer(
	" ", "%20",
	"!", "%21",
	"'", "%27",
	"(", "%28",
	")", "%29",
	"+", "%2B",
	":", "%3A",
	"~", "%7E",
	"/", "%2F",
	"?", "%3F",
	"#", "%23",
	"%", "%25",
)

// RESTChannels is the registry of a client's channels. Channels are created
// on first use and kept until released.
type RESTChannels struct {
	client *REST
	chans  hashtriemap.HashTrieMap[string, *RESTChannel]
}

func newRESTChannels(client *REST) *RESTChannels {
	return &RESTChannels{client: client}
}

// Get gives the channel with the given name, creating it if needed. Options
// given for an existing channel replace its current ones.
func (c *RESTChannels) Get(name string, options ...ChannelOption) *RESTChannel {
	if ch, ok := c.chans.Load(name); ok {
		if len(options) > 0 {
			ch.setOptions(applyChannelOptions(options...))
		}
		return ch
	}
	ch := newRESTChannel(name, c.client)
	ch.setOptions(applyChannelOptions(options...))
	if existing, loaded := c.chans.LoadOrStore(name, ch); loaded {
		if len(options) > 0 {
			existing.setOptions(applyChannelOptions(options...))
		}
		return existing
	}
	return ch
}

// Exists reports whether a channel with the given name is in the registry.
func (c *RESTChannels) Exists(name string) bool {
	_, ok := c.chans.Load(name)
	return ok
}

// Release removes a channel from the registry.
func (c *RESTChannels) Release(name string) {
	c.chans.LoadAndDelete(name)
}

// Iterate gives the channels currently in the registry.
func (c *RESTChannels) Iterate() []*RESTChannel {
	var chans []*RESTChannel
	c.chans.Range(func(_ string, ch *RESTChannel) bool {
		chans = append(chans, ch)
		return true
	})
	return chans
}

// RESTChannel is the interface for REST API operations on a channel.
type RESTChannel struct {
	Name     string
	Presence *RESTPresence

	client  *REST
	baseURL string

	mu        sync.Mutex
	cipher    channelCipher
	cipherErr error
}

func newRESTChannel(name string, client *REST) *RESTChannel {
	c := &RESTChannel{
		Name:    name,
		client:  client,
		baseURL: "/channels/" + encodeURIComponent.Replace(name),
	}
	c.Presence = &RESTPresence{
		client:  client,
		channel: c,
	}
	return c
}

func (c *RESTChannel) setOptions(opts *channelOptions) {
	cipher, err := opts.cipher()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cipher, c.cipherErr = cipher, err
}

func (c *RESTChannel) channelCipher() (channelCipher, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cipher, c.cipherErr
}

// Publish publishes a single message on the channel.
func (c *RESTChannel) Publish(ctx context.Context, name string, data interface{}, options ...PublishMultipleOption) error {
	return c.PublishMultiple(ctx, []*Message{
		{Name: name, Data: data},
	}, options...)
}

// PublishMultipleOption is an optional parameter for
// RESTChannel.Publish and RESTChannel.PublishMultiple.
type PublishMultipleOption func(*publishMultipleOptions)

type publishMultipleOptions struct {
	params map[string]string
}

// PublishWithParams adds query parameters to the resulting HTTP request to the REST API.
func PublishWithParams(params map[string]string) PublishMultipleOption {
	return func(options *publishMultipleOptions) {
		options.params = params
	}
}

// PublishMultiple publishes multiple messages in a batch. The messages
// themselves are not modified.
func (c *RESTChannel) PublishMultiple(ctx context.Context, messages []*Message, options ...PublishMultipleOption) error {
	var publishOpts publishMultipleOptions
	for _, o := range options {
		o(&publishOpts)
	}
	cipher, err := c.channelCipher()
	if err != nil {
		return err
	}
	if err := c.checkClientIDs(messages); err != nil {
		return err
	}
	ids, err := c.idempotentIDs(messages)
	if err != nil {
		return err
	}
	binary := c.client.opts.UseBinaryProtocol
	encoded := make([]Message, len(messages))
	for i, m := range messages {
		e, err := m.withEncodedData(cipher, binary)
		if err != nil {
			return err
		}
		if ids != nil {
			e.ID = ids[i]
		}
		encoded[i] = e
	}
	params := make(url.Values)
	for k, v := range publishOpts.params {
		params.Set(k, v)
	}
	_, err = c.client.do(ctx, &request{
		Method: http.MethodPost,
		Path:   c.baseURL + "/messages",
		Params: params,
		In:     encoded,
	})
	return err
}

// checkClientIDs rejects messages published under an identity other than
// the client's own.
func (c *RESTChannel) checkClientIDs(messages []*Message) error {
	clientID := c.client.Auth.ClientID()
	for _, m := range messages {
		if m.ClientID == wildcardClientID {
			return newErrorf(ErrInvalidClientID, "message clientId must not be a wildcard")
		}
		if m.ClientID != "" && clientID != "" && m.ClientID != clientID {
			return newErrorf(ErrInvalidClientID, "message clientId %q does not match the client's %q", m.ClientID, clientID)
		}
	}
	return nil
}

// idempotentIDs gives the ids to assign when idempotent publishing is on and
// no message carries its own id, nil otherwise.
func (c *RESTChannel) idempotentIDs(messages []*Message) ([]string, error) {
	if !c.client.opts.IdempotentRESTPublishing {
		return nil, nil
	}
	for _, m := range messages {
		if m.ID != "" {
			return nil, nil
		}
	}
	base, err := ablyutil.BaseID()
	if err != nil {
		return nil, newError(ErrInternalError, err)
	}
	ids := make([]string, len(messages))
	for i := range messages {
		ids[i] = fmt.Sprintf("%s:%d", base, i)
	}
	return ids, nil
}

// History gives the channel's message history.
func (c *RESTChannel) History(ctx context.Context, options ...HistoryOption) (*PaginatedResult[*Message], error) {
	cipher, err := c.channelCipher()
	if err != nil {
		return nil, err
	}
	query := pageQuery[*Message]{
		client: c.client,
		decode: func(typ string, body []byte) ([]*Message, error) {
			msgs, err := decodeItems[*Message](typ, body)
			if err != nil {
				return nil, err
			}
			return decodeMessages(msgs, cipher, nil)
		},
	}
	return query.load(ctx, c.baseURL+"/messages", applyHistoryOptions(options))
}

// DecodeMessages decodes messages of this channel received outside of the
// client, such as the payload of a webhook, with the channel's cipher. The
// client's vcdiff plugin is used when dctx has none.
func (c *RESTChannel) DecodeMessages(encoded []byte, dctx *DecodingContext) ([]*Message, error) {
	if dctx != nil && dctx.VCDiffPlugin == nil {
		dctx.VCDiffPlugin = c.client.opts.VCDiffPlugin
	}
	cipher, err := c.channelCipher()
	if err != nil {
		return nil, err
	}
	raw, err := unmarshalEncodedMessages(encoded)
	if err != nil {
		return nil, err
	}
	return decodeMessages(raw, cipher, dctx)
}

// ChannelOccupancy holds the number of connections attached to a channel,
// by kind.
type ChannelOccupancy struct {
	Metrics ChannelMetrics `json:"metrics" codec:"metrics"`
}

type ChannelMetrics struct {
	Connections         int `json:"connections" codec:"connections"`
	PresenceConnections int `json:"presenceConnections" codec:"presenceConnections"`
	PresenceMembers     int `json:"presenceMembers" codec:"presenceMembers"`
	PresenceSubscribers int `json:"presenceSubscribers" codec:"presenceSubscribers"`
	Publishers          int `json:"publishers" codec:"publishers"`
	Subscribers         int `json:"subscribers" codec:"subscribers"`
}

type ChannelStatus struct {
	IsActive  bool             `json:"isActive" codec:"isActive"`
	Occupancy ChannelOccupancy `json:"occupancy" codec:"occupancy"`
}

// ChannelDetails describes a channel and its current activity.
type ChannelDetails struct {
	ChannelID string        `json:"channelId" codec:"channelId"`
	Status    ChannelStatus `json:"status" codec:"status"`
}

// Status queries the channel's current status and occupancy.
func (c *RESTChannel) Status(ctx context.Context) (*ChannelDetails, error) {
	var details ChannelDetails
	if _, err := c.client.do(ctx, &request{
		Method: http.MethodGet,
		Path:   c.baseURL,
		Out:    &details,
	}); err != nil {
		return nil, err
	}
	return &details, nil
}
