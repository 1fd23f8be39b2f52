package profile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taply/backend/internal/models"
)

func TestPublic_Branding(t *testing.T) {
	free := &models.Account{Username: "alex", Plan: models.PlanFree}
	none := &models.Account{Username: "alex"}
	premium := &models.Account{Username: "alex", Plan: models.PlanPremium}

	assert.True(t, Public(free).Branding)
	assert.True(t, Public(none).Branding)
	assert.False(t, Public(premium).Branding)
}

func TestPublic_DisplayNameFallsBackToUsername(t *testing.T) {
	acc := &models.Account{Username: "a-user"}
	assert.Equal(t, "a-user", Public(acc).DisplayName)

	acc.Profile.DisplayName = "Alex"
	assert.Equal(t, "Alex", Public(acc).DisplayName)
}

func TestPublic_StripsCredentials(t *testing.T) {
	acc := &models.Account{
		ID:           "id-1",
		Email:        "a@x.com",
		PasswordHash: "secret-hash",
		Token:        "secret-token",
		Username:     "a-user",
		Profile:      models.Profile{Email: "a@x.com"},
	}

	data, err := json.Marshal(Public(acc))
	require.NoError(t, err)

	assert.NotContains(t, string(data), "secret-hash")
	assert.NotContains(t, string(data), "secret-token")
	assert.NotContains(t, string(data), "passwordHash")
	assert.NotContains(t, string(data), "a@x.com")

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, true, doc["branding"])
	assert.Equal(t, float64(100), doc["customBackgroundZoom"])
}

func TestShortLinkTarget(t *testing.T) {
	p := models.Profile{ShortLinks: map[string]string{
		"cv":   "https://example.com/cv.pdf",
		"evil": "javascript:alert(1)",
	}}

	target, ok := ShortLinkTarget(p, "cv")
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/cv.pdf", target)

	_, ok = ShortLinkTarget(p, "evil")
	assert.False(t, ok)

	_, ok = ShortLinkTarget(p, "missing")
	assert.False(t, ok)
}
