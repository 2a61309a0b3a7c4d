package fetch

import (
	"os"

	"go.uber.org/atomic"
)

// Context is the process-wide fallback for the project and credentials used
// when a caller builds a client without supplying them. Only NewClient reads
// it; everything below the public surface takes explicit arguments.
type Context struct {
	Project  string
	APIToken string

	// Proxies maps scheme ("http", "https", "no") to a proxy url, mirroring
	// the standard proxy environment variables.
	Proxies map[string]string
}

var globalContext atomic.Pointer[Context]

// SetContext replaces the active context wholesale and returns the previous
// one, so tests and embedding applications can restore it. There is no
// synchronization beyond the atomicity of the pointer swap.
func SetContext(ctx Context) Context {
	prev := globalContext.Swap(&ctx)
	if prev == nil {
		return Context{}
	}
	return *prev
}

// ActiveContext returns the active context, initializing it from the
// environment on first access.
func ActiveContext() Context {
	if ctx := globalContext.Load(); ctx != nil {
		return *ctx
	}
	fromEnv := contextFromEnv()
	globalContext.CompareAndSwap(nil, &fromEnv)
	return *globalContext.Load()
}

func contextFromEnv() Context {
	ctx := Context{
		Project:  os.Getenv("NEPTUNE_PROJECT"),
		APIToken: os.Getenv("NEPTUNE_API_TOKEN"),
	}
	proxies := map[string]string{
		"http":  os.Getenv("HTTP_PROXY"),
		"https": os.Getenv("HTTPS_PROXY"),
		"no":    os.Getenv("NO_PROXY"),
	}
	for scheme, url := range proxies {
		if url == "" {
			delete(proxies, scheme)
		}
	}
	if len(proxies) > 0 {
		ctx.Proxies = proxies
	}
	return ctx
}
