package cachefront

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/cachefront/cachefront/cache"

	"github.com/rs/zerolog"
)

func newClassifyFront(t *testing.T) *CacheFront {
	t.Helper()
	origin, err := url.Parse("https://app.example.com")
	if err != nil {
		t.Fatal(err)
	}
	logger := zerolog.Nop()
	return New(Config{
		Cache:     cache.NewMemProvider(),
		AppID:     "app",
		Version:   1,
		OriginURL: *origin,
		Logger:    &logger,
	})
}

func TestClassify(t *testing.T) {
	front := newClassifyFront(t)

	tests := []struct {
		name    string
		method  string
		url     string
		headers map[string]string
		want    strategy
	}{
		{"post is passthrough", "POST", "https://app.example.com/api/data", nil, strategyPassthrough},
		{"put is passthrough", "PUT", "https://app.example.com/api/data", nil, strategyPassthrough},
		{"delete with navigate header is still passthrough", "DELETE", "https://app.example.com/",
			map[string]string{"Sec-Fetch-Mode": "navigate"}, strategyPassthrough},
		{"fetch metadata navigation", "GET", "https://app.example.com/some/route",
			map[string]string{"Sec-Fetch-Mode": "navigate"}, strategyNetworkFirst},
		{"accept html navigation", "GET", "https://app.example.com/page",
			map[string]string{"Accept": "text/html,application/xhtml+xml"}, strategyNetworkFirst},
		{"fetch metadata wins over accept", "GET", "https://app.example.com/app.js",
			map[string]string{"Sec-Fetch-Mode": "no-cors", "Accept": "text/html"}, strategyRevalidate},
		{"script revalidates", "GET", "https://app.example.com/assets/app.js", nil, strategyRevalidate},
		{"stylesheet revalidates", "GET", "https://app.example.com/style.css", nil, strategyRevalidate},
		{"png is cache first", "GET", "https://app.example.com/logo.png", nil, strategyCacheFirst},
		{"svg is cache first", "GET", "https://app.example.com/icons/menu.svg", nil, strategyCacheFirst},
		{"webp is cache first", "GET", "https://app.example.com/img/hero.webp", nil, strategyCacheFirst},
		{"suffix match is case sensitive", "GET", "https://app.example.com/logo.PNG", nil, strategyNetworkFallback},
		{"uppercase script falls back", "GET", "https://app.example.com/APP.JS", nil, strategyNetworkFallback},
		{"cross origin script falls back", "GET", "https://cdn.example.com/lib.js", nil, strategyNetworkFallback},
		{"cross origin image falls back", "GET", "https://cdn.example.com/logo.png", nil, strategyNetworkFallback},
		{"api request falls back", "GET", "https://app.example.com/api/data", nil, strategyNetworkFallback},
		{"json accept is not a navigation", "GET", "https://app.example.com/api/data",
			map[string]string{"Accept": "application/json"}, strategyNetworkFallback},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req, err := http.NewRequest(test.method, test.url, nil)
			if err != nil {
				t.Fatal(err)
			}
			for k, v := range test.headers {
				req.Header.Set(k, v)
			}
			if got := front.classify(req); got != test.want {
				t.Fatalf("Classified as %s, want %s", got, test.want)
			}
		})
	}
}

func TestStoreName(t *testing.T) {
	front := newClassifyFront(t)
	if front.StoreName() != "app-cache-v1" {
		t.Fatalf("Store name is %s", front.StoreName())
	}
}
