package models

// MediaType identifies the kind of finished media.
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeImage MediaType = "image"
)

// Media is one finished transcode result, created exactly once per
// successful pipeline run. PostID is empty until the media is attached
// to a post by a later user action.
type Media struct {
	// Keys
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`

	// Attributes
	MediaID         string    `dynamodbav:"media_id" json:"mediaId"`
	SessionID       string    `dynamodbav:"session_id" json:"sessionId"`
	PostID          string    `dynamodbav:"post_id,omitempty" json:"postId,omitempty"`
	Type            MediaType `dynamodbav:"media_type" json:"type"`
	DurationSeconds float64   `dynamodbav:"duration_seconds" json:"durationSeconds"`
	Width           int       `dynamodbav:"width" json:"width"`
	Height          int       `dynamodbav:"height" json:"height"`
	CreatedAt       string    `dynamodbav:"created_at" json:"createdAt"`
}

// MediaVariant is one encoded rendition of a Media.
type MediaVariant struct {
	// Keys
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`

	// Attributes
	VariantID  string `dynamodbav:"variant_id" json:"variantId"`
	MediaID    string `dynamodbav:"media_id" json:"mediaId"`
	Quality    string `dynamodbav:"quality" json:"quality"`
	StorageKey string `dynamodbav:"storage_key" json:"storageKey"`
	SizeBytes  int64  `dynamodbav:"size_bytes" json:"sizeBytes"`
}

// Thumbnail is one still frame extracted from a Media. IsSelected marks
// the user's chosen cover image; at-most-one-selected is not enforced.
type Thumbnail struct {
	// Keys
	PK string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`

	// Attributes
	ThumbnailID string `dynamodbav:"thumbnail_id" json:"thumbnailId"`
	MediaID     string `dynamodbav:"media_id" json:"mediaId"`
	StorageKey  string `dynamodbav:"storage_key" json:"storageKey"`
	IsSelected  bool   `dynamodbav:"is_selected" json:"isSelected"`
}

// MediaBundle joins a Media with its variants and thumbnails for status
// responses.
type MediaBundle struct {
	Media      Media          `json:"media"`
	Variants   []MediaVariant `json:"variants"`
	Thumbnails []Thumbnail    `json:"thumbnails"`
}
