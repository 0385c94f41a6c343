// Package mapper translates between Notion page properties and creator
// records. It is the only package that interprets page properties.
package mapper

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode"

	"creator_sync/internal/domain"
	"creator_sync/internal/notion"
)

// Property display names in the Notion database.
const (
	PropName         = "Name"
	PropUsername     = "Username"
	PropBio          = "Bio"
	PropProfileImage = "Profile Image"
	PropIsVerified   = "Is Verified"
	PropIsFeatured   = "Is Featured"
	PropIsNew        = "Is New"
	PropType         = "Type"
	PropTwitter      = "Twitter"
	PropThrone       = "Throne"
	PropCashapp      = "Cashapp"
	PropOnlyFans     = "OnlyFans"
	PropOther        = "Other"
	PropID           = "ID"
)

const (
	DefaultName = "Unnamed"

	// MaxBioLength is Notion's rich text limit.
	MaxBioLength = 2000
)

var ErrNoIdentifier = errors.New("page has no identifier")

type socialProperty struct {
	key      string
	prop     string
	propType string
}

var socialProperties = []socialProperty{
	{domain.SocialTwitter, PropTwitter, notion.TypeURL},
	{domain.SocialThrone, PropThrone, notion.TypeURL},
	{domain.SocialCashapp, PropCashapp, notion.TypeRichText},
	{domain.SocialOnlyFans, PropOnlyFans, notion.TypeURL},
	{domain.SocialOther, PropOther, notion.TypeURL},
}

// FromPage builds a creator from a Notion page. Missing or malformed
// properties fall back to defaults; the only error is a page without any
// identifier.
func FromPage(page notion.Page, now time.Time) (domain.Creator, error) {
	props := page.Properties

	id := text(props, PropID)
	if id == "" {
		id = page.ID
	}
	if id == "" {
		return domain.Creator{}, ErrNoIdentifier
	}

	name := text(props, PropName)
	if name == "" {
		name = DefaultName
	}

	username := text(props, PropUsername)
	if username == "" {
		username = Slug(name)
	}

	profileImage := text(props, PropProfileImage)
	if profileImage == "" {
		profileImage = domain.DefaultProfileImage
	}

	creatorType := text(props, PropType)
	if creatorType == "" {
		creatorType = domain.DefaultCreatorType
	}

	links := domain.SocialLinks{}
	for _, sp := range socialProperties {
		links.Set(sp.key, text(props, sp.prop))
	}

	return domain.Creator{
		ID:           id,
		Name:         name,
		Username:     username,
		Bio:          text(props, PropBio),
		ProfileImage: profileImage,
		IsVerified:   checkbox(props, PropIsVerified),
		IsFeatured:   checkbox(props, PropIsFeatured),
		IsNew:        checkbox(props, PropIsNew),
		Type:         creatorType,
		SocialLinks:  links,
		UpdatedAt:    now,
	}, nil
}

// ToProperties builds the property bag for creating a page from c. The bio is
// cut to its first MaxBioLength characters.
func ToProperties(c domain.Creator) notion.Properties {
	props := notion.Properties{
		PropName:       {Type: notion.TypeTitle, Title: notion.Text(c.Name)},
		PropUsername:   {Type: notion.TypeRichText, RichText: notion.Text(c.Username)},
		PropBio:        {Type: notion.TypeRichText, RichText: notion.Text(Truncate(c.Bio, MaxBioLength))},
		PropIsVerified: {Type: notion.TypeCheckbox, Checkbox: c.IsVerified},
		PropIsFeatured: {Type: notion.TypeCheckbox, Checkbox: c.IsFeatured},
		PropIsNew:      {Type: notion.TypeCheckbox, Checkbox: c.IsNew},
		PropID:         {Type: notion.TypeRichText, RichText: notion.Text(c.ID)},
	}

	if c.ProfileImage != "" {
		props[PropProfileImage] = urlValue(c.ProfileImage)
	}
	if c.Type != "" {
		props[PropType] = notion.PropertyValue{Type: notion.TypeSelect, Select: &notion.SelectOption{Name: c.Type}}
	}

	for _, sp := range socialProperties {
		v := c.SocialLinks[sp.key]
		if v == "" {
			continue
		}
		if sp.propType == notion.TypeURL {
			props[sp.prop] = urlValue(v)
		} else {
			props[sp.prop] = notion.PropertyValue{Type: notion.TypeRichText, RichText: notion.Text(v)}
		}
	}

	return props
}

// Slug lowercases name and replaces each run of whitespace with a hyphen.
// Leading and trailing whitespace become hyphens too.
func Slug(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	inSpace := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('-')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// Truncate returns the first n characters of s.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func urlValue(v string) notion.PropertyValue {
	return notion.PropertyValue{Type: notion.TypeURL, URL: &v}
}

func property(props map[string]json.RawMessage, name string) (notion.PropertyValue, bool) {
	raw, ok := props[name]
	if !ok || len(raw) == 0 {
		return notion.PropertyValue{}, false
	}
	var v notion.PropertyValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return notion.PropertyValue{}, false
	}
	return v, true
}

// text reads a property as text whatever its Notion type.
func text(props map[string]json.RawMessage, name string) string {
	v, ok := property(props, name)
	if !ok {
		return ""
	}

	var s string
	switch {
	case len(v.Title) > 0:
		s = notion.PlainText(v.Title)
	case len(v.RichText) > 0:
		s = notion.PlainText(v.RichText)
	case v.URL != nil:
		s = *v.URL
	case v.Select != nil:
		s = v.Select.Name
	}
	return s
}

func checkbox(props map[string]json.RawMessage, name string) bool {
	v, ok := property(props, name)
	return ok && v.Checkbox
}
