package ably

import (
	"runtime"
	"strings"

	"github.com/ably/ably-rest-go/ably/internal/ablyutil"
)

// constants for rsc7
const (
	ablyProtocolVersionHeader = "X-Ably-Version"
	ablyAgentHeader           = "Ably-Agent"
	ablyErrorCodeHeader       = "X-Ably-Errorcode"
	ablyErrorMessageHeader    = "X-Ably-Errormessage"
	ablyClientIDHeader        = "X-Ably-ClientId"
	ablyProtocolVersion       = "2"
	libraryVersion            = "1.0.0"
	libraryName               = "ably-rest-go"
	ablySDKIdentifier         = libraryName + "/" + libraryVersion
	requestIDParam            = "request_id"
)

var goRuntimeIdentifier = "go/" + strings.TrimPrefix(runtime.Version(), "go")

// ablyAgentIdentifier builds the Ably-Agent header value: the library, the Go
// runtime, the OS and then any caller registered agents, sorted by name.
func ablyAgentIdentifier(agents map[string]string) string {
	identifiers := []string{ablySDKIdentifier, goRuntimeIdentifier}
	if osIdentifier := goOSIdentifier(); osIdentifier != "" {
		identifiers = append(identifiers, osIdentifier)
	}
	names := make([]string, 0, len(agents))
	for name := range agents {
		names = append(names, name)
	}
	for _, name := range ablyutil.Sort(names) {
		if version := agents[name]; version != "" {
			identifiers = append(identifiers, name+"/"+version)
		} else {
			identifiers = append(identifiers, name)
		}
	}
	return strings.Join(identifiers, " ")
}
