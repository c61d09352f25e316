package httpcache

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path/filepath"
	"time"

	"github.com/bxcodec/httpcache/cache"
)

// Transport caches GET responses in a cache.ICacheInteractor, serving them
// back until maxAge passes. Anything other than a 200 goes uncached.
type Transport struct {
	transport http.RoundTripper
	storage   cache.ICacheInteractor
	maxAge    time.Duration
}

func NewTransport(transport http.RoundTripper, storage cache.ICacheInteractor, maxAge time.Duration) *Transport {
	if transport == nil {
		transport = http.DefaultTransport
	}

	if maxAge == 0 {
		maxAge = time.Hour * 24
	}

	return &Transport{
		transport: transport,
		storage:   storage,
		maxAge:    maxAge,
	}
}

func makeKey(u *url.URL) string {
	h := sha1.New()
	io.WriteString(h, u.String())
	return filepath.Join(u.Host, hex.EncodeToString(h.Sum(nil)))
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.transport.RoundTrip(req)
	}

	key := makeKey(req.URL)

	if cr, err := t.storage.Get(key); err == nil && time.Now().Sub(cr.CachedTime) < t.maxAge {
		if res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(cr.DumpedResponse)), req); err == nil {
			return res, nil
		}
	}

	res, err := t.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return res, nil
	}

	d, err := httputil.DumpResponse(res, true)
	if err != nil {
		return nil, err
	}

	if err := t.storage.Set(key, cache.CachedResponse{
		DumpedResponse: d,
		RequestURI:     req.URL.String(),
		RequestMethod:  req.Method,
		CachedTime:     time.Now(),
	}); err != nil {
		return nil, err
	}

	return res, nil
}
