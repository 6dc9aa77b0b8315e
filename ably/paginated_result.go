package ably

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// relLinkRegexp matches one pagination link, as in
// Link: <./messages?start=0&end=1535035746063&limit=100&direction=backwards>; rel="next"
var relLinkRegexp = regexp.MustCompile(`<(?P<url>[^>]+)>;\s*rel="(?P<rel>[^"]+)"`)

// pageQuery describes how the pages of one paginated resource are fetched and
// decoded.
type pageQuery[T any] struct {
	client *REST
	method string // defaults to GET; later pages are always fetched with GET
	header http.Header
	body   interface{}
	decode func(typ string, body []byte) ([]T, error)

	// keepErrorStatus turns non-2xx service responses into pages instead of
	// errors.
	keepErrorStatus bool
}

// PaginatedResult is a single page of a paginated resource. Pages are only
// fetched on demand: First and Next each issue one request.
type PaginatedResult[T any] struct {
	query     pageQuery[T]
	path      string
	firstPath string
	firstArgs url.Values
	links     map[string]string
	items     []T
	resp      *response
}

func (q pageQuery[T]) load(ctx context.Context, p string, params url.Values) (*PaginatedResult[T], error) {
	method := q.method
	if method == "" {
		method = http.MethodGet
	}
	r := &request{
		Method: method,
		Path:   p,
		Params: params,
		In:     q.body,
		Header: q.header,
	}
	resp, err := q.client.do(ctx, r)
	if err != nil {
		errResp, ok := errorResponse(err)
		if !q.keepErrorStatus || !ok {
			return nil, err
		}
		resp = errResp
	}
	links, err := parseLinks(resp.Header.Values("Link"))
	if err != nil {
		return nil, err
	}
	var items []T
	if isSuccess(resp.StatusCode) && len(resp.Body) > 0 {
		if items, err = q.decode(mediaType(resp.Header.Get("Content-Type")), resp.Body); err != nil {
			return nil, err
		}
	}
	if i := strings.IndexRune(p, '?'); i != -1 {
		p = p[:i]
	}
	return &PaginatedResult[T]{
		query:     q,
		path:      p,
		firstPath: p,
		firstArgs: params,
		links:     links,
		items:     items,
		resp:      resp,
	}, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// parseLinks maps each relation of the Link headers to its relative URL.
// Only links relative to the current resource ("./...") are supported.
func parseLinks(values []string) (map[string]string, error) {
	links := make(map[string]string)
	for _, v := range values {
		for _, match := range relLinkRegexp.FindAllStringSubmatch(v, -1) {
			link, rel := match[1], match[2]
			if !strings.HasPrefix(link, "./") {
				return nil, newErrorf(ErrProtocolError, "unsupported pagination link %q: only relative links are supported", link)
			}
			for _, name := range strings.Fields(rel) {
				links[name] = link
			}
		}
	}
	return links, nil
}

// Items gives the items of the current page.
func (p *PaginatedResult[T]) Items() []T {
	return p.items
}

// IsPaginated reports whether the response carried any pagination links.
func (p *PaginatedResult[T]) IsPaginated() bool {
	return len(p.links) > 0
}

func (p *PaginatedResult[T]) HasFirst() bool {
	_, ok := p.links["first"]
	return ok
}

func (p *PaginatedResult[T]) HasNext() bool {
	_, ok := p.links["next"]
	return ok
}

// IsLast reports whether there is no next page.
func (p *PaginatedResult[T]) IsLast() bool {
	return !p.HasNext()
}

// Next fetches the next page. On the last page, it returns nil and no error.
func (p *PaginatedResult[T]) Next(ctx context.Context) (*PaginatedResult[T], error) {
	link, ok := p.links["next"]
	if !ok {
		return nil, nil
	}
	return p.follow(ctx, link)
}

// First fetches the first page. Without a "first" link, the request that
// produced the first page of this result is repeated.
func (p *PaginatedResult[T]) First(ctx context.Context) (*PaginatedResult[T], error) {
	if link, ok := p.links["first"]; ok {
		return p.follow(ctx, link)
	}
	q := p.laterPagesQuery()
	next, err := q.load(ctx, p.firstPath, p.firstArgs)
	if err != nil {
		return nil, err
	}
	next.firstPath, next.firstArgs = p.firstPath, p.firstArgs
	return next, nil
}

func (p *PaginatedResult[T]) follow(ctx context.Context, link string) (*PaginatedResult[T], error) {
	q := p.laterPagesQuery()
	next, err := q.load(ctx, buildPath(p.path, link), nil)
	if err != nil {
		return nil, err
	}
	next.firstPath, next.firstArgs = p.firstPath, p.firstArgs
	return next, nil
}

func (p *PaginatedResult[T]) laterPagesQuery() pageQuery[T] {
	q := p.query
	q.method = http.MethodGet
	q.body = nil
	return q
}

// buildPath resolves a relative link against the path of the page it was
// found on. The query of the link is kept verbatim.
func buildPath(origPath string, newRelativePath string) string {
	if i := strings.IndexRune(origPath, '?'); i != -1 {
		origPath = origPath[:i]
	}
	rel, query, hasQuery := strings.Cut(newRelativePath, "?")
	p := path.Join(path.Dir(origPath), rel)
	if hasQuery {
		p += "?" + query
	}
	return p
}

// decodeItems decodes a response body holding an array of T.
func decodeItems[T any](typ string, body []byte) ([]T, error) {
	var items []T
	if err := decode(typ, body, &items); err != nil {
		return nil, newError(ErrProtocolError, err)
	}
	return items, nil
}

// decodeRawItems gives each element of an array body, or the body itself
// when it is a single object, as JSON.
func decodeRawItems(typ string, body []byte) ([]json.RawMessage, error) {
	if typ == protocolMsgPack {
		var v interface{}
		if err := decodeMsgpack(body, &v); err != nil {
			return nil, newError(ErrProtocolError, err)
		}
		p, err := json.Marshal(v)
		if err != nil {
			return nil, newError(ErrProtocolError, err)
		}
		body = p
	} else if typ != protocolJSON {
		return nil, newErrorf(ErrProtocolError, "unsupported Content-Type %q", typ)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}
	var item json.RawMessage
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, newError(ErrProtocolError, err)
	}
	return []json.RawMessage{item}, nil
}
