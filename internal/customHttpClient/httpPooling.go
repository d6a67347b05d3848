package customHttpClient

import (
	"net/http"
	"sync"

	"github.com/akolanti/TranscriptRAG/internal/config"
)

var (
	once   sync.Once
	client *http.Client
)

// Get returns the process-wide pooled client shared by the embedding and completion providers.
// Timeouts are applied per call through contexts, so the client itself has none.
func Get() *http.Client {
	once.Do(func() {
		client = &http.Client{Transport: newTransport()}
	})
	return client
}

func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = config.MaxIdleConns
	t.MaxIdleConnsPerHost = config.MaxIdleConnsPerHost
	t.IdleConnTimeout = config.IdleConnTimeout
	return t
}
