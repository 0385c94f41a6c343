package notion

import (
	"encoding/json"
	"fmt"
)

// Property types understood by the client.
const (
	TypeTitle    = "title"
	TypeRichText = "rich_text"
	TypeURL      = "url"
	TypeCheckbox = "checkbox"
	TypeSelect   = "select"
)

// Credentials identify a Notion integration and the database it syncs with.
type Credentials struct {
	APIKey     string
	DatabaseID string
}

func (c Credentials) Valid() bool {
	return c.APIKey != "" && c.DatabaseID != ""
}

// Page is a Notion page as returned by the query endpoint. Properties are
// kept raw so that one malformed value cannot fail the decoding of a whole
// response.
type Page struct {
	Object         string                     `json:"object"`
	ID             string                     `json:"id"`
	CreatedTime    string                     `json:"created_time"`
	LastEditedTime string                     `json:"last_edited_time"`
	Archived       bool                       `json:"archived"`
	URL            string                     `json:"url"`
	Properties     map[string]json.RawMessage `json:"properties"`
}

// Properties is a property bag keyed by display name.
type Properties map[string]PropertyValue

type RichText struct {
	Type      string       `json:"type,omitempty"`
	Text      *TextContent `json:"text,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
}

type TextContent struct {
	Content string `json:"content"`
}

type SelectOption struct {
	Name string `json:"name"`
}

// PropertyValue is a typed Notion property value. Only the field matching
// Type is meaningful.
type PropertyValue struct {
	Type     string
	Title    []RichText
	RichText []RichText
	URL      *string
	Checkbox bool
	Select   *SelectOption
}

type propertyWire struct {
	Type     string        `json:"type"`
	Title    []RichText    `json:"title"`
	RichText []RichText    `json:"rich_text"`
	URL      *string       `json:"url"`
	Checkbox bool          `json:"checkbox"`
	Select   *SelectOption `json:"select"`
}

func (p PropertyValue) MarshalJSON() ([]byte, error) {
	out := map[string]any{"type": p.Type}
	switch p.Type {
	case TypeTitle:
		out[TypeTitle] = nonNil(p.Title)
	case TypeRichText:
		out[TypeRichText] = nonNil(p.RichText)
	case TypeURL:
		out[TypeURL] = p.URL
	case TypeCheckbox:
		out[TypeCheckbox] = p.Checkbox
	case TypeSelect:
		out[TypeSelect] = p.Select
	default:
		return nil, fmt.Errorf("unsupported property type %q", p.Type)
	}
	return json.Marshal(out)
}

func (p *PropertyValue) UnmarshalJSON(data []byte) error {
	var w propertyWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = PropertyValue(w)
	return nil
}

func nonNil(rt []RichText) []RichText {
	if rt == nil {
		return []RichText{}
	}
	return rt
}

// Text builds a single-segment rich text array.
func Text(content string) []RichText {
	return []RichText{{Type: "text", Text: &TextContent{Content: content}}}
}

// PlainText concatenates the text of all segments, preferring plain_text as
// returned by the API and falling back to the request-side text content.
func PlainText(rt []RichText) string {
	var s string
	for _, r := range rt {
		switch {
		case r.PlainText != "":
			s += r.PlainText
		case r.Text != nil:
			s += r.Text.Content
		}
	}
	return s
}

type Database struct {
	Object string     `json:"object"`
	ID     string     `json:"id"`
	Title  []RichText `json:"title"`
}

type queryRequest struct {
	PageSize    int    `json:"page_size"`
	StartCursor string `json:"start_cursor,omitempty"`
}

type queryResponse struct {
	Object     string  `json:"object"`
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

type parent struct {
	DatabaseID string `json:"database_id"`
}

type createPageRequest struct {
	Parent     parent     `json:"parent"`
	Properties Properties `json:"properties"`
}

type errorResponse struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
