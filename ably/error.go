package ably

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrorCode is the type for predefined Ably error codes.
type ErrorCode int

func (c ErrorCode) String() string {
	return errCodeText[c]
}

func toStatusCode(code ErrorCode) int {
	switch status := int(code) / 100; status {
	case 400, 401, 403, 404, 405, 500:
		return status
	default:
		return 0
	}
}

// RawResponse is the unparsed HTTP response an ErrorInfo was built from.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ErrorInfo describes an error returned from Ably API or raised by the
// library itself. It always has a non-zero error code. It may contain an
// underlying error value which caused the failure condition.
type ErrorInfo struct {
	StatusCode int
	Code       ErrorCode
	HRef       string
	Server     string

	// Raw is set when the error was built from an HTTP response.
	Raw *RawResponse

	// err is the application-level error we're wrapping, or just a message.
	err error
}

// Error implements the builtin error interface.
func (e *ErrorInfo) Error() string {
	errorHref := e.HRef
	if errorHref == "" && e.Code != 0 {
		errorHref = fmt.Sprintf("https://help.ably.io/error/%d", e.Code)
	}
	msg := e.Message()
	var see string
	if !strings.Contains(msg, errorHref) {
		see = " See " + errorHref
	}
	return fmt.Sprintf("[ErrorInfo :%s code=%d %v statusCode=%d]%s", msg, e.Code, e.Code, e.StatusCode, see)
}

// Unwrap implements the implicit interface that errors.Unwrap understands.
func (e *ErrorInfo) Unwrap() error {
	return e.err
}

// Message returns the undecorated error message.
func (e *ErrorInfo) Message() string {
	if e.err == nil {
		return e.Code.String()
	}
	return e.err.Error()
}

func newError(code ErrorCode, err error) *ErrorInfo {
	var info *ErrorInfo
	if errors.As(err, &info) {
		return info
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ErrorInfo{Code: ErrTimeoutError, StatusCode: 500, err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &ErrorInfo{Code: ErrTimeoutError, StatusCode: 500, err: err}
		}
	}
	return &ErrorInfo{
		Code:       code,
		StatusCode: toStatusCode(code),
		err:        err,
	}
}

func newErrorf(code ErrorCode, format string, v ...interface{}) *ErrorInfo {
	return &ErrorInfo{
		Code:       code,
		StatusCode: toStatusCode(code),
		err:        fmt.Errorf(format, v...),
	}
}

// newTransportError classifies a failure to get any HTTP response at all.
// Timeouts keep their distinguished code so the fallback loop can treat them
// like any other connectivity failure.
func newTransportError(err error) *ErrorInfo {
	e := newError(ErrInternalConnectionError, err)
	if e.StatusCode == 0 {
		e.StatusCode = 500
	}
	return e
}

func code(err error) ErrorCode {
	var info *ErrorInfo
	if errors.As(err, &info) {
		return info.Code
	}
	return 0
}

func statusCode(err error) int {
	var info *ErrorInfo
	if errors.As(err, &info) {
		return info.StatusCode
	}
	return 0
}

// isTokenError reports whether err is in the 40140-40149 range, that is, the
// token in use is expired or otherwise no longer valid and a new one may fix it.
func isTokenError(err error) bool {
	c := code(err)
	return c >= ErrTokenErrorUnspecified && c <= ErrTokenErrorRangeEnd
}

// isConnectivityError reports whether retrying on another host might help.
// Anything below 50000 is a definitive answer from the service.
func isConnectivityError(err error) bool {
	return code(err) >= ErrInternalError
}

// checkValidHTTPResponse turns a non-2xx response into an *ErrorInfo. The
// response body is fully consumed either way when an error is returned.
func checkValidHTTPResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return newTransportError(err)
	}
	return errorFromResponse(resp.StatusCode, resp.Header, body)
}

func errorFromResponse(status int, header http.Header, body []byte) *ErrorInfo {
	e := &ErrorInfo{
		StatusCode: status,
		Raw:        &RawResponse{StatusCode: status, Header: header, Body: body},
	}
	typ, _, _ := mime.ParseMediaType(header.Get("Content-Type"))
	var msg string
	switch {
	case typ == protocolJSON && gjson.ValidBytes(body):
		obj := gjson.ParseBytes(body)
		if env := obj.Get("error"); env.IsObject() {
			obj = env
		}
		e.Code = ErrorCode(obj.Get("code").Int())
		if sc := obj.Get("statusCode").Int(); sc != 0 {
			e.StatusCode = int(sc)
		}
		e.HRef = obj.Get("href").String()
		msg = obj.Get("message").String()
	case typ == protocolMsgPack:
		var envelope struct {
			Error *errorInfo `codec:"error"`
		}
		if err := decodeMsgpack(body, &envelope); err == nil && envelope.Error != nil {
			e.Code = ErrorCode(envelope.Error.Code)
			if envelope.Error.StatusCode != 0 {
				e.StatusCode = envelope.Error.StatusCode
			}
			e.HRef = envelope.Error.HRef
			msg = envelope.Error.Message
		}
	}
	if e.Code == 0 {
		if h := header.Get(ablyErrorCodeHeader); h != "" {
			if n, err := strconv.Atoi(h); err == nil {
				e.Code = ErrorCode(n)
			}
		}
	}
	if msg == "" {
		msg = header.Get(ablyErrorMessageHeader)
	}
	if e.Code == 0 {
		e.Code = ErrorCode(status * 100)
	}
	if msg != "" {
		e.err = errors.New(msg)
	} else if len(body) > 0 && typ != protocolJSON && typ != protocolMsgPack {
		e.err = fmt.Errorf("unexpected HTTP %d response: %.200s", status, body)
	}
	return e
}

// DecryptionError is returned when an encrypted message payload cannot be
// decrypted. Payloads are never handed back partially decoded.
type DecryptionError struct {
	Encoding string
	Err      error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decrypting message data encoded as %q: %v", e.Encoding, e.Err)
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}
