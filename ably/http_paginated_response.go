package ably

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
)

// HTTPPaginatedResponse is the response to REST.Request. Its items are the
// raw JSON elements of the response body.
type HTTPPaginatedResponse struct {
	*PaginatedResult[json.RawMessage]

	StatusCode   int
	Success      bool
	ErrorCode    ErrorCode
	ErrorMessage string
	Headers      http.Header
}

func newHTTPPaginatedResponse(p *PaginatedResult[json.RawMessage]) *HTTPPaginatedResponse {
	resp := p.resp
	h := &HTTPPaginatedResponse{
		PaginatedResult: p,
		StatusCode:      resp.StatusCode,
		Success:         isSuccess(resp.StatusCode),
		Headers:         resp.Header,
	}
	if v := resp.Header.Get(ablyErrorCodeHeader); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			h.ErrorCode = ErrorCode(n)
		}
	}
	h.ErrorMessage = resp.Header.Get(ablyErrorMessageHeader)
	if !h.Success {
		e := errorFromResponse(resp.StatusCode, resp.Header, resp.Body)
		if h.ErrorCode == 0 {
			h.ErrorCode = e.Code
		}
		if h.ErrorMessage == "" {
			h.ErrorMessage = e.Message()
		}
	}
	return h
}

// Next fetches the next page. On the last page, it returns nil and no error.
func (h *HTTPPaginatedResponse) Next(ctx context.Context) (*HTTPPaginatedResponse, error) {
	p, err := h.PaginatedResult.Next(ctx)
	if p == nil || err != nil {
		return nil, err
	}
	return newHTTPPaginatedResponse(p), nil
}

// First fetches the first page.
func (h *HTTPPaginatedResponse) First(ctx context.Context) (*HTTPPaginatedResponse, error) {
	p, err := h.PaginatedResult.First(ctx)
	if err != nil {
		return nil, err
	}
	return newHTTPPaginatedResponse(p), nil
}

// DecodeItems unmarshals every item of the page into out, which must be a
// pointer to a slice.
func (h *HTTPPaginatedResponse) DecodeItems(out interface{}) error {
	p, err := json.Marshal(h.Items())
	if err != nil {
		return err
	}
	return json.Unmarshal(p, out)
}
