package domain

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// User Tests
// =============================================================================

func TestUser_DisplayName(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"handle wins", User{Username: "alice", FirstName: "Alice", LastName: "Smith"}, "@alice"},
		{"first and last", User{FirstName: "Alice", LastName: "Smith"}, "Alice Smith"},
		{"first only", User{FirstName: "Alice"}, "Alice"},
		{"last only", User{LastName: "Smith"}, "Smith"},
		{"empty", User{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Membership Tests
// =============================================================================

func TestMembership_CanDeleteOthers(t *testing.T) {
	tests := []struct {
		name string
		m    Membership
		want bool
	}{
		{"creator", Membership{Status: MemberCreator}, true},
		{"admin with rights", Membership{Status: MemberAdministrator, CanDeleteMessages: true}, true},
		{"admin without rights", Membership{Status: MemberAdministrator}, false},
		{"member", Membership{Status: MemberMember, CanDeleteMessages: true}, false},
		{"left", Membership{Status: MemberLeft}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.CanDeleteOthers(); got != tt.want {
				t.Errorf("CanDeleteOthers() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestModerationOutcome_Expected(t *testing.T) {
	for _, o := range []ModerationOutcome{ModerationDeleted, ModerationNotAllowed, ModerationPermissionDenied, ModerationNotFound} {
		if !o.Expected() {
			t.Errorf("%s should be expected", o)
		}
	}
	if ModerationFailed.Expected() {
		t.Error("failed should not be expected")
	}
}

// =============================================================================
// Callback Payload Tests
// =============================================================================

func TestCallbackData_Encode(t *testing.T) {
	data := NewAudioCallback(LinkKey{RequesterID: 42, MessageID: 99})
	if got := data.Encode(); got != "get_mp3|42|99" {
		t.Errorf("Encode() = %q, want %q", got, "get_mp3|42|99")
	}
}

func TestParseCallbackData(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    LinkKey
		wantErr error
	}{
		{"valid", "get_mp3|42|99", LinkKey{RequesterID: 42, MessageID: 99}, nil},
		{"negative ids", "get_mp3|-100123|7", LinkKey{RequesterID: -100123, MessageID: 7}, nil},
		{"empty", "", LinkKey{}, ErrMalformedPayload},
		{"too few fields", "get_mp3|42", LinkKey{}, ErrMalformedPayload},
		{"too many fields", "get_mp3|42|99|1", LinkKey{}, ErrMalformedPayload},
		{"non numeric requester", "get_mp3|abc|99", LinkKey{}, ErrMalformedPayload},
		{"non numeric message", "get_mp3|42|x", LinkKey{}, ErrMalformedPayload},
		{"too long", "get_mp3|42|" + strings.Repeat("9", 70), LinkKey{}, ErrMalformedPayload},
		{"unknown tag", "get_gif|42|99", LinkKey{RequesterID: 42, MessageID: 99}, ErrUnknownAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCallbackData(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseCallbackData(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				if tt.wantErr == ErrMalformedPayload {
					return
				}
			} else if err != nil {
				t.Fatalf("ParseCallbackData(%q) unexpected error: %v", tt.input, err)
			}
			if got.Key != tt.want {
				t.Errorf("Key = %+v, want %+v", got.Key, tt.want)
			}
		})
	}
}

func TestCallbackData_RoundTrip(t *testing.T) {
	key := LinkKey{RequesterID: 123456789, MessageID: 314}
	got, err := ParseCallbackData(NewAudioCallback(key).Encode())
	if err != nil {
		t.Fatalf("ParseCallbackData failed: %v", err)
	}
	if got.Action != ActionFetchAudio || got.Key != key {
		t.Errorf("got %+v", got)
	}
}

// =============================================================================
// Download Job Tests
// =============================================================================

func TestNewDownloadJob_Paths(t *testing.T) {
	video := NewDownloadJob("job-1", "https://youtu.be/abc", "downloads", ModeVideo, -100, 5)
	if want := filepath.Join("downloads", "video_-100_5"); video.PathPrefix != want {
		t.Errorf("PathPrefix = %q, want %q", video.PathPrefix, want)
	}
	if want := filepath.Join("downloads", "video_-100_5.mp4"); video.Path() != want {
		t.Errorf("Path() = %q, want %q", video.Path(), want)
	}

	audio := NewDownloadJob("job-2", "https://youtu.be/abc", "downloads", ModeAudio, 7, 9)
	if want := filepath.Join("downloads", "audio_7_9.mp3"); audio.Path() != want {
		t.Errorf("Path() = %q, want %q", audio.Path(), want)
	}
}

func TestJobError(t *testing.T) {
	err := NewJobError("job-1", "fetch video", ErrExtractionFailed)
	if err.Error() != "fetch video [job-1]: media extraction failed" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrExtractionFailed) {
		t.Error("JobError should unwrap to ErrExtractionFailed")
	}

	noID := NewJobError("", "fetch audio", ErrFileMissing)
	if noID.Error() != "fetch audio: downloaded file not found" {
		t.Errorf("Error() = %q", noID.Error())
	}
}

func TestEventMetadata_ToJSON(t *testing.T) {
	if got := EventMetadata(nil).ToJSON(); got != nil {
		t.Errorf("nil metadata = %s, want nil", got)
	}
	if got := (EventMetadata{}).ToJSON(); got != nil {
		t.Errorf("empty metadata = %s, want nil", got)
	}
	if got := (EventMetadata{"chat_id": 42}).ToJSON(); string(got) != `{"chat_id":42}` {
		t.Errorf("ToJSON() = %s", got)
	}
	if got := (EventMetadata{"bad": func() {}}).ToJSON(); got != nil {
		t.Errorf("unencodable metadata = %s, want nil", got)
	}
}
