package models

// TranscodeJob is the queue payload produced by CompleteUpload and consumed
// by the transcode worker. The pipeline is idempotent keyed on SessionID,
// not on any queue-level message id.
type TranscodeJob struct {
	SessionID   string `json:"sessionId"`
	UploadToken string `json:"uploadToken"`
	StorageKey  string `json:"storageKey"`
	UserID      string `json:"userId"`
	Bucket      string `json:"bucket"`
}

// Validate checks that the job carries every required field.
func (j *TranscodeJob) Validate() error {
	if j.SessionID == "" {
		return ErrMissingSessionID
	}
	if j.StorageKey == "" {
		return ErrMissingStorageKey
	}
	if j.UserID == "" {
		return ErrMissingUserID
	}
	if j.Bucket == "" {
		return ErrMissingBucket
	}
	return nil
}
