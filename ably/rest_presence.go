package ably

import (
	"context"
	"net/url"
)

// RESTPresence queries the presence of a channel.
type RESTPresence struct {
	client  *REST
	channel *RESTChannel
}

// Get gives the members currently present on the channel.
func (p *RESTPresence) Get(ctx context.Context, options ...GetPresenceOption) (*PaginatedResult[*PresenceMessage], error) {
	var o getPresenceOptions
	for _, set := range options {
		set(&o)
	}
	return p.query(ctx, p.channel.baseURL+"/presence", o.values())
}

// History gives the channel's presence history.
func (p *RESTPresence) History(ctx context.Context, options ...HistoryOption) (*PaginatedResult[*PresenceMessage], error) {
	return p.query(ctx, p.channel.baseURL+"/presence/history", applyHistoryOptions(options))
}

func (p *RESTPresence) query(ctx context.Context, path string, params url.Values) (*PaginatedResult[*PresenceMessage], error) {
	cipher, err := p.channel.channelCipher()
	if err != nil {
		return nil, err
	}
	query := pageQuery[*PresenceMessage]{
		client: p.client,
		decode: func(typ string, body []byte) ([]*PresenceMessage, error) {
			msgs, err := decodeItems[*PresenceMessage](typ, body)
			if err != nil {
				return nil, err
			}
			return decodePresenceMessages(msgs, cipher)
		},
	}
	return query.load(ctx, path, params)
}
