package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageViewableBy(t *testing.T) {
	msg := &Message{
		ID:       "m1",
		SenderID: "creator",
		Body:     "https://storage.googleapis.com/bucket/media/x.jpg",
		Kind:     MessageKindImage,
		Locked:   true,
		Price:    500,
	}

	// Sender always sees their own message.
	assert.True(t, msg.ViewableBy("creator"))

	// A viewer who has not paid does not.
	assert.False(t, msg.ViewableBy("fan"))

	msg.UnlockedBy = []string{"fan"}
	assert.True(t, msg.ViewableBy("fan"))

	// Unlocked messages are always viewable.
	open := &Message{ID: "m2", SenderID: "creator", Locked: false}
	assert.True(t, open.ViewableBy("anyone"))
}

func TestMessageRedacted(t *testing.T) {
	msg := &Message{
		ID:       "m1",
		SenderID: "creator",
		Body:     "secret body",
		Kind:     MessageKindImage,
		Seq:      7,
		Locked:   true,
		Price:    500,
		ReadBy:   []string{"creator"},
	}

	redacted := msg.Redacted()

	assert.Empty(t, redacted.Body)
	assert.True(t, redacted.Locked)
	assert.Equal(t, int64(500), redacted.Price)
	assert.Equal(t, msg.ID, redacted.ID)
	assert.Equal(t, msg.Seq, redacted.Seq)
	assert.Empty(t, redacted.UnlockedBy)

	// The original is untouched.
	assert.Equal(t, "secret body", msg.Body)
}
