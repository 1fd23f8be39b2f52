package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecaptchaVerifier(t *testing.T) {
	v := NewRecaptchaVerifier("shh")
	httpmock.ActivateNonDefault(v.Client().GetClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, v.Endpoint,
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			assert.Equal(t, "shh", req.PostForm.Get("secret"))
			assert.Equal(t, "1.2.3.4", req.PostForm.Get("remoteip"))
			if req.PostForm.Get("response") == "good" {
				return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{"success": true})
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"success": false, "error-codes": []string{"invalid-input-response"},
			})
		})

	ok, reason, err := v.VerifyV2(context.Background(), "good", "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, reason, err = v.VerifyV2(context.Background(), "bad", "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "invalid-input-response", reason)
}

func TestRecaptchaVerifier_MissingInputs(t *testing.T) {
	ok, reason, err := NewRecaptchaVerifier("").VerifyV2(context.Background(), "tok", "")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "missing_secret", reason)

	ok, reason, _ = NewRecaptchaVerifier("s").VerifyV2(context.Background(), " ", "")
	assert.False(t, ok)
	assert.Equal(t, "missing_token", reason)
}

func TestRecaptchaVerifier_HTTPError(t *testing.T) {
	v := NewRecaptchaVerifier("shh")
	httpmock.ActivateNonDefault(v.Client().GetClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, v.Endpoint, httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway"))

	_, _, err := v.VerifyV2(context.Background(), "tok", "")
	assert.Error(t, err)
}
