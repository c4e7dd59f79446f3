package models

import "strings"

type PostStatus string

const (
	PostStatusDraft      PostStatus = "DRAFT"
	PostStatusScheduled  PostStatus = "SCHEDULED"
	PostStatusPublishing PostStatus = "PUBLISHING"
	PostStatusPublished  PostStatus = "PUBLISHED"
	PostStatusFailed     PostStatus = "FAILED"
	PostStatusCancelled  PostStatus = "CANCELLED"
)

func ParsePostStatus(s string) (PostStatus, bool) {
	st := PostStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case PostStatusDraft, PostStatusScheduled, PostStatusPublishing,
		PostStatusPublished, PostStatusFailed, PostStatusCancelled:
		return st, true
	}
	return "", false
}

type PostType string

const (
	PostTypePost     PostType = "POST"
	PostTypeReel     PostType = "REEL"
	PostTypeStory    PostType = "STORY"
	PostTypeVideo    PostType = "VIDEO"
	PostTypeCarousel PostType = "CAROUSEL"
)

func ParsePostType(s string) (PostType, bool) {
	t := PostType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case PostTypePost, PostTypeReel, PostTypeStory, PostTypeVideo, PostTypeCarousel:
		return t, true
	}
	return "", false
}

type MediaType string

const (
	MediaTypeImage MediaType = "IMAGE"
	MediaTypeVideo MediaType = "VIDEO"
)

type Post struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organizationId"`
	ChannelID      string      `json:"channelId"`
	Type           PostType    `json:"type"`
	Caption        string      `json:"caption"`
	Status         PostStatus  `json:"status"`
	ScheduledAt    *int64      `json:"scheduledAt,omitempty"`
	PublishedAt    *int64      `json:"publishedAt,omitempty"`
	CreatedBy      string      `json:"createdBy"`
	Assets         []PostAsset `json:"assets"`
	CreatedAt      int64       `json:"createdAt"`
	UpdatedAt      int64       `json:"updatedAt"`
}

type PostAsset struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	URL       string    `json:"url"`
	MediaType MediaType `json:"mediaType"`
	Position  int       `json:"position"`
	CreatedAt int64     `json:"createdAt"`
}
