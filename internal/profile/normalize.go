// Package profile holds the pure rules of the profile document: defaults,
// legacy field migration, background crop math and the public read model.
package profile

import (
	"encoding/json"
	"strings"

	"github.com/taply/backend/internal/models"
)

// Normalize returns a complete copy of p with every field populated.
//
// When socialLinks is empty, it is rebuilt from the legacy platforms list paired
// with socialUrls. The legacy fields themselves are kept. Normalize never
// mutates p and Normalize(Normalize(p)) equals Normalize(p).
func Normalize(p models.Profile) models.Profile {
	out := models.Profile{
		Theme:                    p.Theme,
		Platforms:                append([]string{}, p.Platforms...),
		SocialURLs:               make(map[string]string, len(p.SocialURLs)),
		SocialLinks:              append([]models.SocialLink{}, p.SocialLinks...),
		Links:                    make([]models.Link, 0, len(p.Links)),
		CustomBackgroundImage:    nonEmpty(p.CustomBackgroundImage),
		CustomBackgroundPosition: DefaultPositionFor(p.CustomBackgroundPosition),
		DisplayName:              p.DisplayName,
		Bio:                      p.Bio,
		Avatar:                   nonEmpty(p.Avatar),
		Username:                 p.Username,
		Email:                    p.Email,
	}
	for k, v := range p.SocialURLs {
		out.SocialURLs[k] = v
	}
	if p.ShortLinks != nil {
		out.ShortLinks = make(map[string]string, len(p.ShortLinks))
		for k, v := range p.ShortLinks {
			out.ShortLinks[k] = v
		}
	}
	if p.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = v
		}
	}

	if !models.IsTheme(out.Theme) {
		out.Theme = models.DefaultTheme
	}

	zoom := models.DefaultBackgroundZoom
	if p.CustomBackgroundZoom != nil {
		zoom = ClampZoom(*p.CustomBackgroundZoom)
	}
	out.CustomBackgroundZoom = &zoom

	if len(out.SocialLinks) == 0 && len(out.Platforms) > 0 {
		out.SocialLinks = SocialLinksFromPlatforms(out.Platforms, out.SocialURLs)
	}
	if len(out.SocialLinks) > models.MaxSocialLinks {
		out.SocialLinks = out.SocialLinks[:models.MaxSocialLinks]
	}

	for _, l := range p.Links {
		if l.Type != models.LinkTypeImage {
			l.Type = models.LinkTypeLink
		}
		out.Links = append(out.Links, l)
	}
	return out
}

// SocialLinksFromPlatforms builds the current socialLinks shape from the legacy
// platforms list. Platforms without a stored URL get an empty one.
func SocialLinksFromPlatforms(platforms []string, urls map[string]string) []models.SocialLink {
	out := make([]models.SocialLink, 0, len(platforms))
	for _, key := range platforms {
		out = append(out, models.SocialLink{Platform: key, URL: urls[key]})
	}
	return out
}

// DefaultPositionFor canonicalises a stored background position.
func DefaultPositionFor(pos string) string {
	if strings.TrimSpace(pos) == "" {
		return models.DefaultBackgroundPosition
	}
	return CanonicalPosition(pos)
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := *s
	return &v
}
