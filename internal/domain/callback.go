package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// CallbackAction is the tag at the head of a callback payload.
type CallbackAction string

// ActionFetchAudio requests the audio-only version of a delivered video.
const ActionFetchAudio CallbackAction = "get_mp3"

// callbackDataLimit is Telegram's maximum callback_data length in bytes.
const callbackDataLimit = 64

// CallbackData is a decoded "tag|requesterID|messageID" payload.
type CallbackData struct {
	Action CallbackAction
	Key    LinkKey
}

// NewAudioCallback builds the payload attached to the audio button.
func NewAudioCallback(key LinkKey) CallbackData {
	return CallbackData{Action: ActionFetchAudio, Key: key}
}

// Encode renders the payload in its wire form.
func (c CallbackData) Encode() string {
	return fmt.Sprintf("%s|%d|%d", c.Action, c.Key.RequesterID, c.Key.MessageID)
}

// ParseCallbackData decodes a wire payload. Malformed input yields ErrMalformedPayload;
// a well-formed payload with an unrecognised tag yields ErrUnknownAction.
func ParseCallbackData(s string) (CallbackData, error) {
	if s == "" || len(s) > callbackDataLimit {
		return CallbackData{}, fmt.Errorf("%w: length %d", ErrMalformedPayload, len(s))
	}

	parts := strings.Split(s, "|")
	if len(parts) != 3 {
		return CallbackData{}, fmt.Errorf("%w: want 3 fields, got %d", ErrMalformedPayload, len(parts))
	}

	requesterID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return CallbackData{}, fmt.Errorf("%w: requester id: %v", ErrMalformedPayload, err)
	}
	messageID, err := strconv.Atoi(parts[2])
	if err != nil {
		return CallbackData{}, fmt.Errorf("%w: message id: %v", ErrMalformedPayload, err)
	}

	data := CallbackData{
		Action: CallbackAction(parts[0]),
		Key:    LinkKey{RequesterID: requesterID, MessageID: messageID},
	}
	if data.Action != ActionFetchAudio {
		return data, fmt.Errorf("%w: %q", ErrUnknownAction, parts[0])
	}
	return data, nil
}
