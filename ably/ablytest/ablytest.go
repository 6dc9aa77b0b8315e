// Package ablytest provides helpers to test code using the ably package
// without reaching the Ably service.
package ablytest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ably/ably-rest-go/ably"
	"github.com/ably/ably-rest-go/ably/internal/ablyutil"
)

func encode(typ string, in interface{}) ([]byte, error) {
	switch typ {
	case "application/json":
		return json.Marshal(in)
	case "application/x-msgpack":
		return ablyutil.MarshalMsgpack(in)
	case "text/plain":
		return []byte(fmt.Sprintf("%v", in)), nil
	default:
		return nil, fmt.Errorf("encoding error: unrecognized Content-Type: %q", typ)
	}
}

// AllPages follows a paginated result from its current page to the last one
// and gives the items of every page.
func AllPages[T any](ctx context.Context, page *ably.PaginatedResult[T]) ([]T, error) {
	var all []T
	for page != nil {
		all = append(all, page.Items()...)
		var err error
		if page, err = page.Next(ctx); err != nil {
			return all, err
		}
	}
	return all, nil
}
