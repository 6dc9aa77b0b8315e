package ablytest

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// RoundTripRecorder is a http.RoundTripper wrapper which records
// HTTP requests.
type RoundTripRecorder struct {
	// Transport sends the requests; http.DefaultTransport if nil.
	Transport http.RoundTripper

	mtx  sync.Mutex
	reqs []*http.Request
}

var _ http.RoundTripper = (*RoundTripRecorder)(nil)

// Len gives number of recorded requests.
func (rec *RoundTripRecorder) Len() int {
	rec.mtx.Lock()
	defer rec.mtx.Unlock()
	return len(rec.reqs)
}

// Request gives nth recorded http.Request. Its body can be read again.
func (rec *RoundTripRecorder) Request(n int) *http.Request {
	rec.mtx.Lock()
	defer rec.mtx.Unlock()
	return rec.reqs[n]
}

// Requests gives all HTTP requests in order they were recorded.
func (rec *RoundTripRecorder) Requests() []*http.Request {
	rec.mtx.Lock()
	defer rec.mtx.Unlock()
	reqs := make([]*http.Request, len(rec.reqs))
	copy(reqs, rec.reqs)
	return reqs
}

// Reset forgets the recorded requests.
func (rec *RoundTripRecorder) Reset() {
	rec.mtx.Lock()
	rec.reqs = nil
	rec.mtx.Unlock()
}

// RoundTrip implements the http.RoundTripper interface.
func (rec *RoundTripRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	tr := rec.Transport
	if tr == nil {
		tr = http.DefaultTransport
	}
	reqBody, err := drain(req.Body)
	if err != nil {
		return nil, err
	}
	if req.Body != nil {
		req.Body = body(reqBody)
	}
	resp, err := tr.RoundTrip(req)
	recorded := req.Clone(req.Context())
	recorded.Body = body(reqBody)
	rec.mtx.Lock()
	rec.reqs = append(rec.reqs, recorded)
	rec.mtx.Unlock()
	return resp, err
}

func drain(rc io.ReadCloser) ([]byte, error) {
	if rc == nil {
		return nil, nil
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

type readCloser struct {
	*bytes.Reader
}

func (readCloser) Close() error { return nil }

func body(p []byte) io.ReadCloser {
	return readCloser{bytes.NewReader(p)}
}
