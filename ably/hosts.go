package ably

import (
	"sync"
	"time"

	"github.com/ably/ably-rest-go/ably/internal/ablyutil"
)

// restHosts picks the hosts a request is sent to. The fallback hosts are
// shuffled once, when the client is created, and keep that order for the
// client's lifetime.
type restHosts struct {
	primary   string
	fallbacks []string
	cache     *hostCache
}

func newRestHosts(opts *clientOptions) *restHosts {
	fallbacks, _ := opts.getFallbackHosts()
	return &restHosts{
		primary:   opts.getPrimaryRestHost(),
		fallbacks: ablyutil.Shuffle(fallbacks),
		cache: &hostCache{
			duration: opts.fallbackRetryTimeout(),
			now:      opts.now,
		},
	}
}

func (h *restHosts) getPrimaryHost() string {
	return h.primary
}

// candidates gives the hosts to try for one request, in order: the cached
// fallback host if any, the primary host, then the remaining fallback hosts.
// No host appears twice. The cached host is returned as well, empty if none.
func (h *restHosts) candidates() (hosts []string, cached string) {
	cached = h.cache.get()
	hosts = make([]string, 0, len(h.fallbacks)+2)
	if cached != "" && cached != h.primary {
		hosts = append(hosts, cached)
	}
	hosts = append(hosts, h.primary)
	for _, host := range h.fallbacks {
		if host != cached && host != h.primary && !ablyutil.Contains(hosts, host) {
			hosts = append(hosts, host)
		}
	}
	return hosts, cached
}

// maxAttempts caps a request cycle over hosts, as given by candidates, at
// the primary host plus at most HTTPMaxRetryCount distinct fallback hosts.
func (h *restHosts) maxAttempts(opts *clientOptions, hosts []string) int {
	retries := opts.HTTPMaxRetryCount
	if n := len(hosts) - 1; n < retries {
		retries = n
	}
	return retries + 1
}

// hostCache remembers the fallback host that last succeeded until duration
// has elapsed.
type hostCache struct {
	mu       sync.Mutex
	host     string
	expires  time.Time
	duration time.Duration
	now      func() time.Time
}

func (c *hostCache) put(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.host = host
	c.expires = c.now().Add(c.duration)
}

func (c *hostCache) get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.host != "" && !c.now().Before(c.expires) {
		c.host = ""
	}
	return c.host
}

// evict forgets host if it is the cached one. A host cached concurrently by
// another request is kept.
func (c *hostCache) evict(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.host == host {
		c.host = ""
	}
}
