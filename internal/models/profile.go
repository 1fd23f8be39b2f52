package models

import (
	"encoding/json"
)

// Themes is the fixed set of public profile themes. The first entry is the default.
var Themes = []string{"midnight", "sunset", "grid", "ivory", "forest", "minimal", "leather", "purple"}

const (
	DefaultTheme              = "midnight"
	DefaultBackgroundPosition = "50% 50%"
	DefaultBackgroundZoom     = 100
	MinBackgroundZoom         = 70
	MaxBackgroundZoom         = 150
	MaxSocialLinks            = 15
)

const (
	LinkTypeLink  = "link"
	LinkTypeImage = "image"
)

// Profile is the per-account document rendered at the public URL.
// Keys the server does not know about are kept in Extra and written back untouched.
type Profile struct {
	Theme                    string
	Platforms                []string
	SocialURLs               map[string]string
	SocialLinks              []SocialLink
	Links                    []Link
	CustomBackgroundImage    *string
	CustomBackgroundPosition string
	CustomBackgroundZoom     *int
	DisplayName              string
	Bio                      string
	Avatar                   *string
	Username                 string
	Email                    string
	ShortLinks               map[string]string

	Extra map[string]json.RawMessage
}

type SocialLink struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

type Link struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Highlight bool   `json:"highlight"`
	Type      string `json:"type,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Icon      string `json:"icon,omitempty"`
	Section   string `json:"section,omitempty"`
}

// IsTheme reports whether id names a known theme.
func IsTheme(id string) bool {
	for _, t := range Themes {
		if t == id {
			return true
		}
	}
	return false
}

// DefaultProfile is the document a freshly registered account starts with.
func DefaultProfile() Profile {
	zoom := DefaultBackgroundZoom
	return Profile{
		Theme:                    DefaultTheme,
		Platforms:                []string{},
		SocialURLs:               map[string]string{},
		SocialLinks:              []SocialLink{},
		Links:                    []Link{},
		CustomBackgroundPosition: DefaultBackgroundPosition,
		CustomBackgroundZoom:     &zoom,
	}
}

// profileFields lists the JSON keys owned by the typed fields of Profile.
var profileFields = map[string]struct{}{
	"theme": {}, "platforms": {}, "socialUrls": {}, "socialLinks": {}, "links": {},
	"customBackgroundImage": {}, "customBackgroundPosition": {}, "customBackgroundZoom": {},
	"displayName": {}, "bio": {}, "avatar": {}, "username": {}, "email": {}, "shortLinks": {},
}

// UnmarshalJSON decodes every known key on its own, so one malformed legacy field
// leaves that field at its zero value instead of rejecting the whole document.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Profile{}
	if raw == nil {
		return nil
	}

	decode := func(key string, dst interface{}) {
		if v, ok := raw[key]; ok {
			_ = json.Unmarshal(v, dst)
		}
	}
	decode("theme", &p.Theme)
	decode("platforms", &p.Platforms)
	decode("socialUrls", &p.SocialURLs)
	decode("socialLinks", &p.SocialLinks)
	decode("links", &p.Links)
	decode("customBackgroundImage", &p.CustomBackgroundImage)
	decode("customBackgroundPosition", &p.CustomBackgroundPosition)
	decode("displayName", &p.DisplayName)
	decode("bio", &p.Bio)
	decode("avatar", &p.Avatar)
	decode("username", &p.Username)
	decode("email", &p.Email)
	decode("shortLinks", &p.ShortLinks)

	// Zoom may arrive as a float from browser clients.
	if v, ok := raw["customBackgroundZoom"]; ok {
		var f *float64
		if err := json.Unmarshal(v, &f); err == nil && f != nil {
			z := int(*f + 0.5)
			if *f < 0 {
				z = int(*f - 0.5)
			}
			p.CustomBackgroundZoom = &z
		}
	}

	for k, v := range raw {
		if _, known := profileFields[k]; known {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]json.RawMessage)
		}
		p.Extra[k] = v
	}
	return nil
}

// MarshalJSON writes the typed fields plus any preserved unknown keys.
func (p Profile) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(profileFields)+len(p.Extra))
	for k, v := range p.Extra {
		out[k] = v
	}
	out["theme"] = p.Theme
	out["platforms"] = nonNilStrings(p.Platforms)
	out["socialUrls"] = nonNilMap(p.SocialURLs)
	out["socialLinks"] = nonNilSocial(p.SocialLinks)
	out["links"] = nonNilLinks(p.Links)
	out["customBackgroundImage"] = p.CustomBackgroundImage
	out["customBackgroundPosition"] = p.CustomBackgroundPosition
	if p.CustomBackgroundZoom != nil {
		out["customBackgroundZoom"] = *p.CustomBackgroundZoom
	}
	out["displayName"] = p.DisplayName
	out["bio"] = p.Bio
	out["avatar"] = p.Avatar
	out["username"] = p.Username
	out["email"] = p.Email
	if p.ShortLinks != nil {
		out["shortLinks"] = p.ShortLinks
	}
	return json.Marshal(out)
}

// Merge overwrites the top-level keys present in patch and keeps every other key.
// Nested objects are replaced wholesale, not merged.
func (p *Profile) Merge(patch map[string]json.RawMessage) error {
	current, err := json.Marshal(p)
	if err != nil {
		return err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(current, &doc); err != nil {
		return err
	}
	for k, v := range patch {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, p)
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilMap(v map[string]string) map[string]string {
	if v == nil {
		return map[string]string{}
	}
	return v
}

func nonNilSocial(v []SocialLink) []SocialLink {
	if v == nil {
		return []SocialLink{}
	}
	return v
}

func nonNilLinks(v []Link) []Link {
	if v == nil {
		return []Link{}
	}
	return v
}

// PublicProfile is the read model served at /api/profile/{username}.
// It never carries credentials or the account email.
type PublicProfile struct {
	Username                 string            `json:"username"`
	DisplayName              string            `json:"displayName"`
	Bio                      string            `json:"bio"`
	Avatar                   *string           `json:"avatar"`
	Theme                    string            `json:"theme"`
	CustomBackgroundImage    *string           `json:"customBackgroundImage"`
	CustomBackgroundPosition string            `json:"customBackgroundPosition"`
	CustomBackgroundZoom     int               `json:"customBackgroundZoom"`
	Platforms                []string          `json:"platforms"`
	SocialURLs               map[string]string `json:"socialUrls"`
	SocialLinks              []SocialLink      `json:"socialLinks"`
	Links                    []Link            `json:"links"`
	Branding                 bool              `json:"branding"`
}
