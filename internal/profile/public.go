package profile

import (
	"strings"

	"github.com/taply/backend/internal/models"
)

// Public builds the anonymous read model of an account. The stored username
// wins over whatever the profile document claims.
func Public(acc *models.Account) models.PublicProfile {
	p := Normalize(acc.Profile)

	displayName := p.DisplayName
	if displayName == "" {
		displayName = acc.Username
	}

	links := make([]models.Link, len(p.Links))
	copy(links, p.Links)

	return models.PublicProfile{
		Username:                 acc.Username,
		DisplayName:              displayName,
		Bio:                      p.Bio,
		Avatar:                   p.Avatar,
		Theme:                    p.Theme,
		CustomBackgroundImage:    p.CustomBackgroundImage,
		CustomBackgroundPosition: p.CustomBackgroundPosition,
		CustomBackgroundZoom:     *p.CustomBackgroundZoom,
		Platforms:                p.Platforms,
		SocialURLs:               p.SocialURLs,
		SocialLinks:              p.SocialLinks,
		Links:                    links,
		Branding:                 !acc.IsPremium(),
	}
}

// ShortLinkTarget returns the redirect target stored under slug, if it is an
// absolute http(s) URL.
func ShortLinkTarget(p models.Profile, slug string) (string, bool) {
	target, ok := p.ShortLinks[slug]
	if !ok {
		return "", false
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target, true
	}
	return "", false
}
