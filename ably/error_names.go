package ably

// Error constants used in ably-rest-go.
// Names are kept short and stable; the descriptive text lives in errCodeText.

const (
	ErrNotSet                                   ErrorCode = 0
	ErrBadRequest                               ErrorCode = 40000
	ErrInvalidRequestBody                       ErrorCode = 40001
	ErrInvalidParameterName                     ErrorCode = 40002
	ErrInvalidParameterValue                    ErrorCode = 40003
	ErrInvalidHeader                            ErrorCode = 40004
	ErrInvalidCredential                        ErrorCode = 40005
	ErrInvalidMessageDataOrEncoding             ErrorCode = 40013
	ErrDeltaDecodingFailed                      ErrorCode = 40018
	ErrInvalidClientID                          ErrorCode = 40012
	ErrUnauthorized                             ErrorCode = 40100
	ErrInvalidCredentials                       ErrorCode = 40101
	ErrIncompatibleCredentials                  ErrorCode = 40102
	ErrInvalidUseOfBasicAuthOverNonTLSTransport ErrorCode = 40103
	ErrNoAuthenticationMeans                    ErrorCode = 40106
	ErrTokenErrorUnspecified                    ErrorCode = 40140
	ErrTokenRevoked                             ErrorCode = 40141
	ErrTokenExpired                             ErrorCode = 40142
	ErrTokenUnrecognised                        ErrorCode = 40144
	ErrTokenErrorRangeEnd                       ErrorCode = 40149
	ErrErrorFromClientTokenCallback             ErrorCode = 40170
	ErrNoWayToRenewAuthToken                    ErrorCode = 40171
	ErrForbidden                                ErrorCode = 40300
	ErrNotFound                                 ErrorCode = 40400
	ErrMethodNotAllowed                         ErrorCode = 40500
	ErrInternalError                            ErrorCode = 50000
	ErrInternalChannelError                     ErrorCode = 50001
	ErrInternalConnectionError                  ErrorCode = 50002
	ErrTimeoutError                             ErrorCode = 50003
	ErrProtocolError                            ErrorCode = 80013
)

var errCodeText = map[ErrorCode]string{
	ErrBadRequest:                               "bad request",
	ErrInvalidRequestBody:                       "invalid request body",
	ErrInvalidParameterName:                     "invalid parameter name",
	ErrInvalidParameterValue:                    "invalid parameter value",
	ErrInvalidHeader:                            "invalid header",
	ErrInvalidCredential:                        "invalid credential",
	ErrInvalidClientID:                          "invalid clientId",
	ErrInvalidMessageDataOrEncoding:             "invalid message data or encoding",
	ErrDeltaDecodingFailed:                      "delta decoding failed",
	ErrUnauthorized:                             "unauthorized",
	ErrInvalidCredentials:                       "invalid credentials",
	ErrIncompatibleCredentials:                  "incompatible credentials",
	ErrInvalidUseOfBasicAuthOverNonTLSTransport: "invalid use of Basic auth over non-TLS transport",
	ErrNoAuthenticationMeans:                    "no means provided to authenticate",
	ErrTokenErrorUnspecified:                    "token error (unspecified)",
	ErrTokenRevoked:                             "token revoked",
	ErrTokenExpired:                             "token expired",
	ErrTokenUnrecognised:                        "token unrecognised",
	ErrErrorFromClientTokenCallback:             "error from client token callback",
	ErrNoWayToRenewAuthToken:                    "no means provided to renew auth token",
	ErrForbidden:                                "forbidden",
	ErrNotFound:                                 "not found",
	ErrMethodNotAllowed:                         "method not allowed",
	ErrInternalError:                            "internal error",
	ErrInternalChannelError:                     "internal channel error",
	ErrInternalConnectionError:                  "internal connection error",
	ErrTimeoutError:                             "timeout error",
	ErrProtocolError:                            "protocol error",
}
