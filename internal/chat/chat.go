// Package chat is the outbound side of the bot: sending text, images and
// documents to a chat and editing previously sent text in place.
package chat

import (
	"context"
	"sync"

	"go.mau.fi/whatsmeow/types"
)

// Handle identifies a sent message so it can be edited later.
type Handle struct {
	Chat types.JID
	ID   types.MessageID
}

// IsZero reports whether h refers to no message, e.g. after a failed send.
func (h Handle) IsZero() bool {
	return h.ID == ""
}

// Messenger is the capability the pipelines reply through.
type Messenger interface {
	SendText(ctx context.Context, chat types.JID, text string) (Handle, error)
	Edit(ctx context.Context, h Handle, text string) error
	SendImage(ctx context.Context, chat types.JID, data []byte, mimetype, caption string) error
	SendDocument(ctx context.Context, chat types.JID, data []byte, filename, mimetype, caption string) error
}

// Reply wraps a Messenger around one placeholder message. Status updates edit
// the placeholder; when it could not be sent they fall back to fresh sends.
// Reply is safe for concurrent use.
type Reply struct {
	m    Messenger
	chat types.JID

	mu     sync.Mutex
	handle Handle
}

// NewReply sends placeholder to chat and returns a Reply bound to it.
func NewReply(ctx context.Context, m Messenger, chat types.JID, placeholder string) (*Reply, error) {
	h, err := m.SendText(ctx, chat, placeholder)
	r := &Reply{m: m, chat: chat, handle: h}
	return r, err
}

func (r *Reply) Chat() types.JID { return r.chat }

// Update replaces the placeholder text.
func (r *Reply) Update(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handle.IsZero() {
		h, err := r.m.SendText(ctx, r.chat, text)
		if err == nil {
			r.handle = h
		}
		return err
	}
	return r.m.Edit(ctx, r.handle, text)
}

func (r *Reply) Image(ctx context.Context, data []byte, mimetype, caption string) error {
	return r.m.SendImage(ctx, r.chat, data, mimetype, caption)
}

func (r *Reply) Document(ctx context.Context, data []byte, filename, mimetype, caption string) error {
	return r.m.SendDocument(ctx, r.chat, data, filename, mimetype, caption)
}
