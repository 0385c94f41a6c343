package mapper

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator_sync/internal/domain"
	"creator_sync/internal/notion"
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func pageFrom(t *testing.T, id string, props notion.Properties) notion.Page {
	t.Helper()
	raw := make(map[string]json.RawMessage, len(props))
	for name, v := range props {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		raw[name] = data
	}
	return notion.Page{Object: "page", ID: id, Properties: raw}
}

func TestFromPage_AllProperties(t *testing.T) {
	page := pageFrom(t, "page-1", notion.Properties{
		"ID":            {Type: notion.TypeRichText, RichText: notion.Text("creator-1")},
		"Name":          {Type: notion.TypeTitle, Title: notion.Text("Jane Doe")},
		"Username":      {Type: notion.TypeRichText, RichText: notion.Text("janed")},
		"Bio":           {Type: notion.TypeRichText, RichText: notion.Text("Hello")},
		"Profile Image": urlValue("https://img.example/jane.png"),
		"Is Verified":   {Type: notion.TypeCheckbox, Checkbox: true},
		"Is Featured":   {Type: notion.TypeCheckbox, Checkbox: false},
		"Is New":        {Type: notion.TypeCheckbox, Checkbox: true},
		"Type":          {Type: notion.TypeSelect, Select: &notion.SelectOption{Name: "premium"}},
		"Twitter":       urlValue("https://twitter.com/jane"),
		"Cashapp":       {Type: notion.TypeRichText, RichText: notion.Text("$jane")},
	})

	c, err := FromPage(page, now)

	require.NoError(t, err)
	assert.Equal(t, domain.Creator{
		ID:           "creator-1",
		Name:         "Jane Doe",
		Username:     "janed",
		Bio:          "Hello",
		ProfileImage: "https://img.example/jane.png",
		IsVerified:   true,
		IsNew:        true,
		Type:         "premium",
		SocialLinks: domain.SocialLinks{
			domain.SocialTwitter: "https://twitter.com/jane",
			domain.SocialCashapp: "$jane",
		},
		UpdatedAt: now,
	}, c)
}

func TestFromPage_Defaults(t *testing.T) {
	c, err := FromPage(notion.Page{ID: "page-9"}, now)

	require.NoError(t, err)
	assert.Equal(t, "page-9", c.ID)
	assert.Equal(t, "Unnamed", c.Name)
	assert.Equal(t, "unnamed", c.Username)
	assert.Equal(t, "", c.Bio)
	assert.Equal(t, domain.DefaultProfileImage, c.ProfileImage)
	assert.False(t, c.IsVerified)
	assert.False(t, c.IsFeatured)
	assert.False(t, c.IsNew)
	assert.Equal(t, "standard", c.Type)
	assert.Empty(t, c.SocialLinks)
	assert.Equal(t, now, c.UpdatedAt)
}

func TestFromPage_MissingNameDerivesSlugFromDefault(t *testing.T) {
	for _, props := range []notion.Properties{
		nil,
		{"Name": {Type: notion.TypeTitle}},
		{"Name": {Type: notion.TypeTitle, Title: notion.Text("")}},
	} {
		c, err := FromPage(pageFrom(t, "p", props), now)
		require.NoError(t, err)
		assert.Equal(t, "Unnamed", c.Name)
		assert.Equal(t, Slug("Unnamed"), c.Username)
	}
}

func TestFromPage_UsernameSlugFromName(t *testing.T) {
	page := pageFrom(t, "p", notion.Properties{
		"Name": {Type: notion.TypeTitle, Title: notion.Text("Mary  Jane Watson")},
	})

	c, err := FromPage(page, now)

	require.NoError(t, err)
	assert.Equal(t, "mary-jane-watson", c.Username)
}

func TestFromPage_MalformedPropertiesDegradeToDefaults(t *testing.T) {
	page := notion.Page{
		ID: "p",
		Properties: map[string]json.RawMessage{
			"Name":        json.RawMessage(`{"type":"title","title":"not-an-array"}`),
			"Is Verified": json.RawMessage(`{"type":"checkbox","checkbox":"yes"}`),
			"Twitter":     json.RawMessage(`{"type":"url","url":null}`),
			"Throne":      json.RawMessage(`{"type":"url","url":""}`),
			"Type":        json.RawMessage(`null`),
		},
	}

	c, err := FromPage(page, now)

	require.NoError(t, err)
	assert.Equal(t, "Unnamed", c.Name)
	assert.False(t, c.IsVerified)
	assert.Equal(t, "standard", c.Type)
	assert.NotContains(t, c.SocialLinks, domain.SocialTwitter)
	assert.NotContains(t, c.SocialLinks, domain.SocialThrone)
}

func TestFromPage_ToleratesRetypedColumns(t *testing.T) {
	page := pageFrom(t, "p", notion.Properties{
		"Twitter": {Type: notion.TypeRichText, RichText: notion.Text("@jane")},
		"Type":    {Type: notion.TypeRichText, RichText: notion.Text("premium")},
	})

	c, err := FromPage(page, now)

	require.NoError(t, err)
	assert.Equal(t, "@jane", c.SocialLinks[domain.SocialTwitter])
	assert.Equal(t, "premium", c.Type)
}

func TestFromPage_NoIdentifier(t *testing.T) {
	_, err := FromPage(notion.Page{}, now)
	assert.ErrorIs(t, err, ErrNoIdentifier)
}

func TestToProperties_TruncatesBio(t *testing.T) {
	long := strings.Repeat("é", 2500)

	props := ToProperties(domain.Creator{ID: "c", Name: "n", Bio: long})

	content := props[PropBio].RichText[0].Text.Content
	assert.Equal(t, MaxBioLength, utf8.RuneCountInString(content))
	assert.True(t, strings.HasPrefix(long, content))
}

func TestToProperties_ShortBioUnchanged(t *testing.T) {
	bio := strings.Repeat("a", MaxBioLength)

	props := ToProperties(domain.Creator{ID: "c", Bio: bio})

	assert.Equal(t, bio, props[PropBio].RichText[0].Text.Content)
}

func TestToProperties_OmitsEmptySocialLinks(t *testing.T) {
	props := ToProperties(domain.Creator{
		ID:          "c",
		SocialLinks: domain.SocialLinks{domain.SocialOnlyFans: "https://onlyfans.com/x", domain.SocialThrone: ""},
	})

	assert.Contains(t, props, PropOnlyFans)
	assert.NotContains(t, props, PropThrone)
	assert.NotContains(t, props, PropTwitter)
	assert.NotContains(t, props, PropCashapp)
}

func TestRoundTrip(t *testing.T) {
	original := domain.Creator{
		ID:           "creator-7",
		Name:         "Round Trip",
		Username:     "rt",
		Bio:          "bio text",
		ProfileImage: "https://img.example/rt.png",
		IsVerified:   true,
		IsFeatured:   true,
		Type:         "premium",
		SocialLinks: domain.SocialLinks{
			domain.SocialTwitter:  "https://twitter.com/rt",
			domain.SocialThrone:   "https://throne.com/rt",
			domain.SocialCashapp:  "$rt",
			domain.SocialOnlyFans: "https://onlyfans.com/rt",
			domain.SocialOther:    "https://rt.example",
		},
		UpdatedAt: now,
	}

	got, err := FromPage(pageFrom(t, "notion-page-id", ToProperties(original)), now)

	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "unnamed", Slug("Unnamed"))
	assert.Equal(t, "a-b-c", Slug("A B\tC"))
	assert.Equal(t, "-solo-", Slug("  Solo  "))
	assert.Equal(t, "foo-bar-", Slug("Foo Bar "))
	assert.Equal(t, "a-b", Slug("A\u00a0\u00a0B"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "日本", Truncate("日本語", 2))
}
