package mw

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// storableHeaders drops the per-origin CORS headers so a hit never replays
// another caller's Access-Control-Allow-Origin.
func storableHeaders(h http.Header) http.Header {
	out := h.Clone()
	for k := range out {
		if k == "Vary" || strings.HasPrefix(k, "Access-Control-") {
			delete(out, k)
		}
	}
	return out
}

// ResponseCache caches successful GET responses until the TTL passes or
// Invalidate is called, whichever comes first.
type ResponseCache struct {
	store *cache.Cache
	ttl   time.Duration
	gen   atomic.Uint64
}

// NewResponseCache creates a cache whose entries live for at most ttl.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		store: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Invalidate drops every cached response. A response being computed while
// Invalidate runs is not stored.
func (rc *ResponseCache) Invalidate() {
	rc.gen.Add(1)
	rc.store.Flush()
}

// Len reports the number of cached responses.
func (rc *ResponseCache) Len() int {
	return rc.store.ItemCount()
}

// Middleware serves GET requests from the cache.
func (rc *ResponseCache) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		gen := rc.gen.Load()
		key := fmt.Sprintf("%d|%s", gen, c.Request.URL.RequestURI())
		if resp, found := rc.store.Get(key); found {
			cached := resp.(cachedResponse)
			for k, v := range cached.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.Header().Set("X-Cache", "HIT")
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		// Only cache successful responses computed against the current data.
		if blw.Status() >= 200 && blw.Status() < 300 && rc.gen.Load() == gen {
			rc.store.Set(key, cachedResponse{
				status:  blw.Status(),
				headers: storableHeaders(blw.Header()),
				body:    blw.body.Bytes(),
			}, rc.ttl)
		}
	}
}
