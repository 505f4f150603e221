package bingx

import (
	"fmt"
	"strings"
)

// BaseURL is the only host the BingX futures REST API is served from. Any
// other host answers every route with error 100400 ("this api is not
// exist"), so the client enforces it at construction.
const BaseURL = "https://open-api.bingx.com"

const (
	pathOrder         = "/openApi/swap/v2/trade/order"
	pathSetLeverage   = "/openApi/swap/v2/trade/setLeverage"
	pathSetMarginMode = "/openApi/swap/v2/trade/setMarginMode"
	pathContracts     = "/openApi/swap/v2/quote/contracts"
	pathServerTime    = "/openApi/swap/v2/server/time"

	swapV2Prefix = "/openApi/swap/v2/"
)

// swapV2Path returns the canonical swap V2 path for endpoint. Absolute
// /openApi paths pass through so alias lists can pin exact routes.
func swapV2Path(endpoint string) string {
	token := strings.Trim(strings.TrimSpace(endpoint), "/")
	if token == "" {
		token = "user/balance"
	}
	if strings.HasPrefix(token, "openApi/") {
		return "/" + token
	}
	return swapV2Prefix + token
}

// swapPaths expands endpoints into the candidate list for the fallback
// chain: each canonical /openApi/swap/v2/ path followed by the variant with
// the version and prefix segments swapped, deduplicated in order. BingX has
// historically flipped the swap/v2 segment order between deployments.
func swapPaths(endpoints ...string) []string {
	if len(endpoints) == 0 {
		endpoints = []string{"user/balance"}
	}
	seen := make(map[string]struct{}, len(endpoints)*2)
	paths := make([]string, 0, len(endpoints)*2)
	add := func(path string) {
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		paths = append(paths, path)
	}
	for _, endpoint := range endpoints {
		canonical := swapV2Path(endpoint)
		add(canonical)
		add(strings.Replace(canonical, "/swap/v2/", "/v2/swap/", 1))
	}
	return paths
}

// assertBase rejects any base URL other than the official BingX host so a
// misconfigured deployment surfaces immediately instead of as 100400 noise.
func assertBase(baseURL string) error {
	candidate := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if candidate != BaseURL {
		if candidate == "" {
			candidate = "<empty>"
		}
		return fmt.Errorf("bingx: wrong base URL %s (must be %s)", candidate, BaseURL)
	}
	return nil
}

// assertOrderPath guards order submissions against drifting off the
// documented futures order route.
func assertOrderPath(path string) error {
	if path != pathOrder {
		if path == "" {
			path = "<empty>"
		}
		return fmt.Errorf("bingx: wrong order path %s (must be %s)", path, pathOrder)
	}
	return nil
}
