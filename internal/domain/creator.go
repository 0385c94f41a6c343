package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// DefaultProfileImage is used when a creator has no profile image.
const DefaultProfileImage = "https://placehold.co/400x400?text=Creator"

const DefaultCreatorType = "standard"

// Known social link keys.
const (
	SocialTwitter  = "twitter"
	SocialThrone   = "throne"
	SocialCashapp  = "cashapp"
	SocialOnlyFans = "onlyfans"
	SocialOther    = "other"
)

type Creator struct {
	ID           string      `db:"id" json:"id"`
	Name         string      `db:"name" json:"name"`
	Username     string      `db:"username" json:"username"`
	Bio          string      `db:"bio" json:"bio"`
	ProfileImage string      `db:"profile_image" json:"profileImage"`
	IsVerified   bool        `db:"is_verified" json:"isVerified"`
	IsFeatured   bool        `db:"is_featured" json:"isFeatured"`
	IsNew        bool        `db:"is_new" json:"isNew"`
	Type         string      `db:"type" json:"type"`
	SocialLinks  SocialLinks `db:"social_links" json:"socialLinks"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`
}

// SocialLinks maps a known social key to a URL or handle. Keys with empty
// values are never stored.
type SocialLinks map[string]string

// Set stores value under key, dropping the key when value is empty.
func (l SocialLinks) Set(key, value string) {
	if value == "" {
		delete(l, key)
		return
	}
	l[key] = value
}

func (l SocialLinks) Value() (driver.Value, error) {
	if l == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(l)
}

func (l *SocialLinks) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = SocialLinks{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("social_links: unsupported type")
	}

	links := SocialLinks{}
	if err := json.Unmarshal(data, &links); err != nil {
		return err
	}
	for k, v := range links {
		if v == "" {
			delete(links, k)
		}
	}
	*l = links
	return nil
}

var ErrCreatorNotFound = errors.New("creator not found")
