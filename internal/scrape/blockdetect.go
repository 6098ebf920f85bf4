package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockRobotCheck BlockType = "robot_check"
	BlockJSShell    BlockType = "js_shell"
)

// challengePageMax bounds the size of pages checked for captcha markers.
// Real challenge pages are small; large listings often embed captcha
// scripts in unrelated forms.
const challengePageMax = 20_000

// DetectBlock checks an HTTP response for signs of anti-bot protection.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" ||
			resp.Header.Get("server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") {
		return true, BlockCloudflare
	}

	// Amazon and Akamai-fronted shops answer 200 or 503 with an interstitial.
	if strings.Contains(lower, "to discuss automated access to amazon data") ||
		strings.Contains(lower, "enter the characters you see below") ||
		(strings.Contains(lower, "access denied") && strings.Contains(lower, "reference #")) {
		return true, BlockRobotCheck
	}

	if len(body) < challengePageMax {
		if strings.Contains(lower, "captcha") {
			return true, BlockCaptcha
		}
		if len(body) < 2000 {
			if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
				return true, BlockJSShell
			}
			if strings.Contains(lower, `meta http-equiv="refresh"`) {
				return true, BlockJSShell
			}
		}
	}

	return false, BlockNone
}
