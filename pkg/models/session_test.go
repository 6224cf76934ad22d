package models

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from SessionStatus
		to   SessionStatus
		want bool
	}{
		{"initiated to uploaded", StatusInitiated, StatusUploaded, true},
		{"initiated to failed", StatusInitiated, StatusFailed, true},
		{"uploaded to processing", StatusUploaded, StatusProcessing, true},
		{"uploaded to failed", StatusUploaded, StatusFailed, true},
		{"processing to done", StatusProcessing, StatusDone, true},
		{"processing to failed", StatusProcessing, StatusFailed, true},
		{"initiated to processing skips uploaded", StatusInitiated, StatusProcessing, false},
		{"initiated to done skips the pipeline", StatusInitiated, StatusDone, false},
		{"uploaded back to initiated", StatusUploaded, StatusInitiated, false},
		{"done is terminal", StatusDone, StatusFailed, false},
		{"failed is terminal", StatusFailed, StatusProcessing, false},
		{"unknown status", SessionStatus("bogus"), StatusUploaded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestSessionStatus_IsValid(t *testing.T) {
	valid := []SessionStatus{StatusInitiated, StatusUploaded, StatusProcessing, StatusDone, StatusFailed}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("IsValid(%s) = false, want true", s)
		}
	}

	if SessionStatus("queued").IsValid() {
		t.Error("IsValid(queued) = true, want false")
	}
	if SessionStatus("").IsValid() {
		t.Error("IsValid(\"\") = true, want false")
	}
}

func TestSessionStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status SessionStatus
		want   bool
	}{
		{StatusInitiated, false},
		{StatusUploaded, false},
		{StatusProcessing, false},
		{StatusDone, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestTranscodeJob_Validate(t *testing.T) {
	valid := TranscodeJob{
		SessionID:  "sess-1",
		StorageKey: "uploads/u1/token.mp4",
		UserID:     "u1",
		Bucket:     "raw-bucket",
	}

	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}

	tests := []struct {
		name    string
		mutate  func(j *TranscodeJob)
		wantErr error
	}{
		{"missing session id", func(j *TranscodeJob) { j.SessionID = "" }, ErrMissingSessionID},
		{"missing storage key", func(j *TranscodeJob) { j.StorageKey = "" }, ErrMissingStorageKey},
		{"missing user id", func(j *TranscodeJob) { j.UserID = "" }, ErrMissingUserID},
		{"missing bucket", func(j *TranscodeJob) { j.Bucket = "" }, ErrMissingBucket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := valid
			tt.mutate(&job)
			if err := job.Validate(); err != tt.wantErr {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
