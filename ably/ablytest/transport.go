package ablytest

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
)

// ErrNoResponse is returned by a MockTransport that has nothing queued for
// a request.
var ErrNoResponse = errors.New("ablytest: no response queued")

// Response is a canned reply served by a MockTransport.
type Response struct {
	// Status defaults to 200.
	Status int
	Header http.Header
	// Body is sent as is when it is a []byte or a string; any other value
	// is encoded with ContentType.
	Body interface{}
	// ContentType defaults to application/json.
	ContentType string
	// Err, if set, fails the round trip without a response.
	Err error
}

// JSON gives a 200 response with in encoded as JSON.
func JSON(in interface{}) Response {
	return Response{Body: in}
}

// ErrorResponse gives a response carrying an Ably error body.
func ErrorResponse(status, code int, message string) Response {
	return Response{
		Status: status,
		Body: map[string]interface{}{
			"error": map[string]interface{}{
				"statusCode": status,
				"code":       code,
				"message":    message,
			},
		},
	}
}

// MockTransport is a http.RoundTripper replying with queued responses,
// either for any host or for a specific one. It records every request it
// sees, including those it fails.
type MockTransport struct {
	mtx       sync.Mutex
	queue     []Response
	byHost    map[string][]Response
	failHosts map[string]error
	handler   func(*http.Request) Response
	rec       RoundTripRecorder
}

var _ http.RoundTripper = (*MockTransport)(nil)

// NewMockTransport gives a transport with nothing queued. The zero value
// is not usable.
func NewMockTransport() *MockTransport {
	t := &MockTransport{
		byHost:    make(map[string][]Response),
		failHosts: make(map[string]error),
	}
	t.rec.Transport = roundTripFunc(t.serve)
	return t
}

// Client gives an HTTP client sending its requests through t.
func (t *MockTransport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// Enqueue adds responses served, in order, to requests for any host.
func (t *MockTransport) Enqueue(resps ...Response) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.queue = append(t.queue, resps...)
}

// EnqueueFor adds responses served, in order, to requests for host. They
// take precedence over responses queued for any host.
func (t *MockTransport) EnqueueFor(host string, resps ...Response) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.byHost[host] = append(t.byHost[host], resps...)
}

// FailHost makes every request for host fail with err until the host is
// restored.
func (t *MockTransport) FailHost(host string, err error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.failHosts[host] = err
}

func (t *MockTransport) RestoreHost(host string) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	delete(t.failHosts, host)
}

// Handle sets a function answering requests nothing is queued for.
func (t *MockTransport) Handle(handler func(*http.Request) Response) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.handler = handler
}

// Requests gives all requests seen, in order.
func (t *MockTransport) Requests() []*http.Request {
	return t.rec.Requests()
}

// Request gives the nth request seen. Its body can be read again.
func (t *MockTransport) Request(n int) *http.Request {
	return t.rec.Request(n)
}

// Len gives the number of requests seen.
func (t *MockTransport) Len() int {
	return t.rec.Len()
}

// Hosts gives the host of every request seen, in order.
func (t *MockTransport) Hosts() []string {
	var hosts []string
	for _, req := range t.rec.Requests() {
		hosts = append(hosts, req.URL.Hostname())
	}
	return hosts
}

// Reset forgets the requests seen. Queued responses are kept.
func (t *MockTransport) Reset() {
	t.rec.Reset()
}

func (t *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.rec.RoundTrip(req)
}

func (t *MockTransport) serve(req *http.Request) (*http.Response, error) {
	resp, err := t.next(req)
	if err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.build(req)
}

func (t *MockTransport) next(req *http.Request) (Response, error) {
	host := req.URL.Hostname()
	t.mtx.Lock()
	if err, ok := t.failHosts[host]; ok {
		t.mtx.Unlock()
		return Response{}, err
	}
	if q := t.byHost[host]; len(q) > 0 {
		t.byHost[host] = q[1:]
		t.mtx.Unlock()
		return q[0], nil
	}
	if len(t.queue) > 0 {
		resp := t.queue[0]
		t.queue = t.queue[1:]
		t.mtx.Unlock()
		return resp, nil
	}
	handler := t.handler
	t.mtx.Unlock()
	if handler != nil {
		return handler(req), nil
	}
	return Response{}, fmt.Errorf("%w for %s %s", ErrNoResponse, req.Method, req.URL)
}

func (r Response) build(req *http.Request) (*http.Response, error) {
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	typ := r.ContentType
	if typ == "" {
		typ = "application/json"
	}
	var p []byte
	switch b := r.Body.(type) {
	case nil:
	case []byte:
		p = b
	case string:
		p = []byte(b)
	default:
		var err error
		if p, err = encode(typ, b); err != nil {
			return nil, err
		}
	}
	header := make(http.Header)
	for k, v := range r.Header {
		header[k] = v
	}
	if header.Get("Content-Type") == "" && p != nil {
		header.Set("Content-Type", typ)
	}
	header.Set("Content-Length", strconv.Itoa(len(p)))
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          body(p),
		ContentLength: int64(len(p)),
		Request:       req,
	}, nil
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
