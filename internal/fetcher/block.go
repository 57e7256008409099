package fetcher

import (
	"strings"
)

// BlockReason names the kind of anti-automation wall found on a page.
type BlockReason string

const (
	BlockReCaptcha  BlockReason = "recaptcha"
	BlockHCaptcha   BlockReason = "hcaptcha"
	BlockTurnstile  BlockReason = "turnstile"
	BlockChallenge  BlockReason = "challenge"
	BlockLoginWall  BlockReason = "login_wall"
	BlockRateNotice BlockReason = "rate_notice"
)

var blockMarkers = []struct {
	reason  BlockReason
	markers []string
}{
	{BlockReCaptcha, []string{"g-recaptcha", "recaptcha/api.js"}},
	{BlockHCaptcha, []string{"h-captcha", "hcaptcha.com/1/api.js"}},
	{BlockTurnstile, []string{"cf-turnstile", "challenges.cloudflare.com/turnstile"}},
	{BlockChallenge, []string{"cf-browser-verification", "checking your browser before accessing", "px-captcha"}},
	{BlockLoginWall, []string{"login to see", "log in to see", "sign in to view", "authwall"}},
	{BlockRateNotice, []string{"please wait a few minutes before you try again"}},
}

// DetectBlock checks a page body for common CAPTCHA, challenge and login
// wall markers. It returns "" for an ordinary page.
func DetectBlock(body string) BlockReason {
	if body == "" {
		return ""
	}
	lower := strings.ToLower(body)
	for _, b := range blockMarkers {
		for _, m := range b.markers {
			if strings.Contains(lower, m) {
				return b.reason
			}
		}
	}
	return ""
}
