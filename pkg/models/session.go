package models

// SessionStatus represents the lifecycle state of an upload session.
type SessionStatus string

const (
	StatusInitiated  SessionStatus = "initiated"
	StatusUploaded   SessionStatus = "uploaded"
	StatusProcessing SessionStatus = "processing"
	StatusDone       SessionStatus = "done"
	StatusFailed     SessionStatus = "failed"
)

// IsValid returns true if the status is a valid SessionStatus.
func (s SessionStatus) IsValid() bool {
	switch s {
	case StatusInitiated, StatusUploaded, StatusProcessing, StatusDone, StatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true if no further transitions are allowed from s.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// transitions is the closed set of allowed status moves. Transitions are
// monotonic: initiated -> uploaded -> processing -> {done | failed}.
var transitions = map[SessionStatus][]SessionStatus{
	StatusInitiated:  {StatusUploaded, StatusFailed},
	StatusUploaded:   {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusDone, StatusFailed},
}

// CanTransition reports whether moving from -> to is a legal status change.
func CanTransition(from, to SessionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UploadSession tracks one client attempt to upload and process a source file.
type UploadSession struct {
	// Keys
	PK     string `dynamodbav:"pk"`
	SK     string `dynamodbav:"sk"`
	GSI1PK string `dynamodbav:"gsi1pk,omitempty"`
	GSI1SK string `dynamodbav:"gsi1sk,omitempty"`

	// Attributes
	SessionID    string        `dynamodbav:"session_id" json:"sessionId"`
	UserID       string        `dynamodbav:"user_id" json:"userId"`
	UploadToken  string        `dynamodbav:"upload_token" json:"uploadToken"`
	StorageKey   string        `dynamodbav:"storage_key" json:"storageKey"`
	FileSize     int64         `dynamodbav:"file_size" json:"fileSize"`
	ContentType  string        `dynamodbav:"content_type" json:"contentType"`
	Status       SessionStatus `dynamodbav:"status" json:"status"`
	ErrorMessage string        `dynamodbav:"error_message,omitempty" json:"errorMessage,omitempty"`
	CreatedAt    string        `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt    string        `dynamodbav:"updated_at" json:"updatedAt"`

	// Processing lease. Populated while a worker owns the session.
	LeaseOwner   string `dynamodbav:"lease_owner,omitempty" json:"-"`
	LeaseToken   string `dynamodbav:"lease_token,omitempty" json:"-"`
	LeaseExpires string `dynamodbav:"lease_expires,omitempty" json:"-"`
}
