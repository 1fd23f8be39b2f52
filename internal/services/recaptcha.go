package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// CaptchaVerifier checks a client captcha token.
type CaptchaVerifier interface {
	VerifyV2(ctx context.Context, token string, remoteIP string) (bool, string, error)
}

type RecaptchaVerifier struct {
	Secret   string
	Endpoint string
	client   *resty.Client
}

type recaptchaVerifyResponse struct {
	Success    bool      `json:"success"`
	ChallengeT time.Time `json:"challenge_ts"`
	Hostname   string    `json:"hostname"`
	ErrorCodes []string  `json:"error-codes"`
}

func NewRecaptchaVerifier(secret string) *RecaptchaVerifier {
	return &RecaptchaVerifier{
		Secret:   secret,
		Endpoint: "https://www.google.com/recaptcha/api/siteverify",
		client:   resty.New().SetTimeout(8 * time.Second),
	}
}

// Client exposes the HTTP client so tests can intercept it.
func (v *RecaptchaVerifier) Client() *resty.Client {
	return v.client
}

// VerifyV2 verifies a reCAPTCHA v2 checkbox token. Returns (ok, reason, error).
func (v *RecaptchaVerifier) VerifyV2(ctx context.Context, token string, remoteIP string) (bool, string, error) {
	if v == nil {
		return false, "verifier_not_configured", nil
	}
	if strings.TrimSpace(v.Secret) == "" {
		return false, "missing_secret", nil
	}
	tok := strings.TrimSpace(token)
	if tok == "" {
		return false, "missing_token", nil
	}

	form := map[string]string{
		"secret":   v.Secret,
		"response": tok,
	}
	if ip := strings.TrimSpace(remoteIP); ip != "" {
		form["remoteip"] = ip
	}

	var out recaptchaVerifyResponse
	resp, err := v.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&out).
		Post(v.Endpoint)
	if err != nil {
		return false, "", err
	}
	if resp.StatusCode() != http.StatusOK {
		return false, "", fmt.Errorf("recaptcha verify http %d", resp.StatusCode())
	}
	if out.Success {
		return true, "", nil
	}
	if len(out.ErrorCodes) > 0 {
		return false, strings.Join(out.ErrorCodes, ","), nil
	}
	return false, "verification_failed", nil
}
