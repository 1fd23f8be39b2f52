package profile

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taply/backend/internal/models"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestNormalize_LegacyPlatformsSynthesizeSocialLinks(t *testing.T) {
	p := models.Profile{
		Platforms:  []string{"instagram", "youtube"},
		SocialURLs: map[string]string{"instagram": "https://a"},
	}

	got := Normalize(p)

	assert.Equal(t, []models.SocialLink{
		{Platform: "instagram", URL: "https://a"},
		{Platform: "youtube", URL: ""},
	}, got.SocialLinks)
	assert.Equal(t, []string{"instagram", "youtube"}, got.Platforms, "legacy platforms are preserved")
	assert.Equal(t, map[string]string{"instagram": "https://a"}, got.SocialURLs, "legacy urls are preserved")
}

func TestNormalize_ExistingSocialLinksWin(t *testing.T) {
	p := models.Profile{
		Platforms:   []string{"instagram"},
		SocialLinks: []models.SocialLink{{Platform: "tiktok", URL: "https://t"}},
	}

	got := Normalize(p)

	assert.Equal(t, []models.SocialLink{{Platform: "tiktok", URL: "https://t"}}, got.SocialLinks)
}

func TestNormalize_Defaults(t *testing.T) {
	got := Normalize(models.Profile{})

	assert.Equal(t, models.DefaultTheme, got.Theme)
	assert.Equal(t, "50% 50%", got.CustomBackgroundPosition)
	require.NotNil(t, got.CustomBackgroundZoom)
	assert.Equal(t, 100, *got.CustomBackgroundZoom)
	assert.Nil(t, got.CustomBackgroundImage)
	assert.Nil(t, got.Avatar)
	assert.NotNil(t, got.Platforms)
	assert.NotNil(t, got.SocialLinks)
	assert.NotNil(t, got.Links)
	assert.NotNil(t, got.SocialURLs)
}

func TestNormalize_ClampsAndCanonicalises(t *testing.T) {
	tests := []struct {
		name     string
		in       models.Profile
		zoom     int
		position string
		theme    string
	}{
		{"zoom too small", models.Profile{CustomBackgroundZoom: intPtr(10)}, 70, "50% 50%", "midnight"},
		{"zoom too large", models.Profile{CustomBackgroundZoom: intPtr(400)}, 150, "50% 50%", "midnight"},
		{"preset position", models.Profile{CustomBackgroundPosition: "center center"}, 100, "50% 50%", "midnight"},
		{"corner preset", models.Profile{CustomBackgroundPosition: "right bottom"}, 100, "100% 100%", "midnight"},
		{"fractional percent", models.Profile{CustomBackgroundPosition: "33.4% 66.6%"}, 100, "33% 67%", "midnight"},
		{"out of range percent", models.Profile{CustomBackgroundPosition: "150% 20%"}, 100, "100% 20%", "midnight"},
		{"garbage position", models.Profile{CustomBackgroundPosition: "somewhere"}, 100, "50% 50%", "midnight"},
		{"known theme", models.Profile{Theme: "forest"}, 100, "50% 50%", "forest"},
		{"unknown theme", models.Profile{Theme: "neon"}, 100, "50% 50%", "midnight"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			assert.Equal(t, tt.zoom, *got.CustomBackgroundZoom)
			assert.Equal(t, tt.position, got.CustomBackgroundPosition)
			assert.Equal(t, tt.theme, got.Theme)
		})
	}
}

func TestNormalize_CapsSocialLinks(t *testing.T) {
	platforms := make([]string, 20)
	for i := range platforms {
		platforms[i] = fmt.Sprintf("p%d", i)
	}

	got := Normalize(models.Profile{Platforms: platforms})

	assert.Len(t, got.SocialLinks, models.MaxSocialLinks)
	assert.Len(t, got.Platforms, 20)
}

func TestNormalize_LinkTypeDefaultsToLink(t *testing.T) {
	got := Normalize(models.Profile{Links: []models.Link{
		{ID: "a", Title: "Site", URL: "https://x"},
		{ID: "b", Type: models.LinkTypeImage, ImageURL: "https://img", URL: "https://y"},
	}})

	assert.Equal(t, models.LinkTypeLink, got.Links[0].Type)
	assert.Equal(t, models.LinkTypeImage, got.Links[1].Type)
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := models.Profile{
		Platforms:  []string{"instagram"},
		SocialURLs: map[string]string{"instagram": "https://a"},
		Links:      []models.Link{{ID: "a"}},
	}

	out := Normalize(in)
	out.SocialURLs["instagram"] = "changed"
	out.Links[0].Title = "changed"

	assert.Empty(t, in.SocialLinks)
	assert.Equal(t, "https://a", in.SocialURLs["instagram"])
	assert.Equal(t, "", in.Links[0].Title)
	assert.Equal(t, "", in.Links[0].Type)
}

func TestNormalize_Idempotent(t *testing.T) {
	raws := []string{
		`{}`,
		`null`,
		`{"platforms":["instagram","youtube"],"socialUrls":{"instagram":"https://a"}}`,
		`{"theme":"sunset","customBackgroundZoom":142.6,"customBackgroundPosition":"left top"}`,
		`{"theme":42,"links":"not a list","customBackgroundImage":"","avatar":"data:image/png;base64,AAA"}`,
		`{"links":[{"id":"x","title":"t","url":"u"}],"shortLinks":{"cv":"https://cv"},"onboarded":true}`,
	}

	for _, raw := range raws {
		t.Run(raw, func(t *testing.T) {
			var p models.Profile
			require.NoError(t, json.Unmarshal([]byte(raw), &p))

			once := Normalize(p)
			twice := Normalize(once)
			assert.Equal(t, once, twice)

			onceJSON, err := json.Marshal(once)
			require.NoError(t, err)
			twiceJSON, err := json.Marshal(twice)
			require.NoError(t, err)
			assert.JSONEq(t, string(onceJSON), string(twiceJSON))
		})
	}
}

func TestNormalize_PreservesUnknownKeys(t *testing.T) {
	var p models.Profile
	require.NoError(t, json.Unmarshal([]byte(`{"theme":"grid","onboarded":true,"accent":"#fff"}`), &p))

	data, err := json.Marshal(Normalize(p))
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, true, doc["onboarded"])
	assert.Equal(t, "#fff", doc["accent"])
	assert.Equal(t, "grid", doc["theme"])
}
