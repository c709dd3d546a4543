package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestMessageText(t *testing.T) {
	tests := []struct {
		name string
		msg  *waProto.Message
		want string
	}{
		{"conversation", &waProto.Message{Conversation: proto.String(" one piece ep 5 ")}, "one piece ep 5"},
		{"extended", &waProto.Message{ExtendedTextMessage: &waProto.ExtendedTextMessage{Text: proto.String("solo leveling ch 3")}}, "solo leveling ch 3"},
		{"image caption", &waProto.Message{ImageMessage: &waProto.ImageMessage{Caption: proto.String("what anime is this")}}, "what anime is this"},
		{"video caption", &waProto.Message{VideoMessage: &waProto.VideoMessage{Caption: proto.String("clip")}}, "clip"},
		{"document caption", &waProto.Message{DocumentMessage: &waProto.DocumentMessage{Caption: proto.String("doc")}}, "doc"},
		{"sticker", &waProto.Message{StickerMessage: &waProto.StickerMessage{}}, ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, messageText(tt.msg))
		})
	}
}

func TestInboundFrom(t *testing.T) {
	alice := types.NewJID("628123456789", types.DefaultUserServer)
	group := types.NewJID("120363000000000000", types.GroupServer)

	message := func(chat types.JID, fromMe bool, text string) *events.Message {
		return &events.Message{
			Info: types.MessageInfo{
				MessageSource: types.MessageSource{
					Chat:     chat,
					Sender:   alice,
					IsFromMe: fromMe,
					IsGroup:  chat.Server == types.GroupServer,
				},
				PushName: "Alice",
			},
			Message: &waProto.Message{Conversation: proto.String(text)},
		}
	}

	in, ok := inboundFrom(message(group, false, ".nime naruto"))
	require.True(t, ok)
	assert.Equal(t, group, in.Chat)
	assert.Equal(t, alice, in.Sender)
	assert.Equal(t, "Alice", in.PushName)
	assert.True(t, in.IsGroup)
	assert.Equal(t, ".nime naruto", in.Text)

	_, ok = inboundFrom(message(alice, true, "naruto"))
	assert.False(t, ok, "own messages are ignored")

	_, ok = inboundFrom(message(types.StatusBroadcastJID, false, "story"))
	assert.False(t, ok, "status updates are ignored")

	_, ok = inboundFrom(message(alice, false, "   "))
	assert.False(t, ok, "blank text is ignored")
}
