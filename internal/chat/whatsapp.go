package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/types"
	"golang.org/x/time/rate"
	"google.golang.org/protobuf/proto"
)

// Client is the part of *whatsmeow.Client the messenger drives.
type Client interface {
	SendMessage(ctx context.Context, to types.JID, message *waProto.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
	BuildEdit(chat types.JID, id types.MessageID, newContent *waProto.Message) *waProto.Message
	Upload(ctx context.Context, plaintext []byte, appInfo whatsmeow.MediaType) (whatsmeow.UploadResponse, error)
	SendChatPresence(ctx context.Context, jid types.JID, state types.ChatPresence, media types.ChatPresenceMedia) error
}

// WhatsApp sends through a whatsmeow client. All sends share one limiter.
type WhatsApp struct {
	client  Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewWhatsApp returns a messenger allowing a burst of 5 sends, refilled
// every 200ms.
func NewWhatsApp(client Client, log zerolog.Logger) *WhatsApp {
	return &WhatsApp{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		log:     log.With().Str("component", "messenger").Logger(),
	}
}

func (w *WhatsApp) send(ctx context.Context, to types.JID, msg *waProto.Message) (types.MessageID, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := w.client.SendMessage(ctx, to, msg)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (w *WhatsApp) SendText(ctx context.Context, chat types.JID, text string) (Handle, error) {
	if err := w.client.SendChatPresence(ctx, chat, types.ChatPresenceComposing, types.ChatPresenceMediaText); err != nil {
		w.log.Debug().Err(err).Str("chat", chat.String()).Msg("composing presence failed")
	}

	id, err := w.send(ctx, chat, &waProto.Message{Conversation: proto.String(text)})
	if err != nil {
		return Handle{}, fmt.Errorf("send text to %s: %w", chat, err)
	}
	return Handle{Chat: chat, ID: id}, nil
}

func (w *WhatsApp) Edit(ctx context.Context, h Handle, text string) error {
	if h.IsZero() {
		return fmt.Errorf("edit in %s: no message handle", h.Chat)
	}
	edit := w.client.BuildEdit(h.Chat, h.ID, &waProto.Message{Conversation: proto.String(text)})
	if _, err := w.send(ctx, h.Chat, edit); err != nil {
		return fmt.Errorf("edit %s in %s: %w", h.ID, h.Chat, err)
	}
	return nil
}

func (w *WhatsApp) SendImage(ctx context.Context, chat types.JID, data []byte, mimetype, caption string) error {
	up, err := w.client.Upload(ctx, data, whatsmeow.MediaImage)
	if err != nil {
		return fmt.Errorf("upload image: %w", err)
	}
	msg := &waProto.Message{
		ImageMessage: &waProto.ImageMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(mimetype),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		},
	}
	if _, err := w.send(ctx, chat, msg); err != nil {
		return fmt.Errorf("send image to %s: %w", chat, err)
	}
	return nil
}

func (w *WhatsApp) SendDocument(ctx context.Context, chat types.JID, data []byte, filename, mimetype, caption string) error {
	up, err := w.client.Upload(ctx, data, whatsmeow.MediaDocument)
	if err != nil {
		return fmt.Errorf("upload document: %w", err)
	}
	msg := &waProto.Message{
		DocumentMessage: &waProto.DocumentMessage{
			Title:         proto.String(filename),
			FileName:      proto.String(filename),
			Caption:       proto.String(caption),
			Mimetype:      proto.String(mimetype),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		},
	}
	if _, err := w.send(ctx, chat, msg); err != nil {
		return fmt.Errorf("send document to %s: %w", chat, err)
	}
	w.log.Info().Str("chat", chat.String()).Str("file", filename).Int("bytes", len(data)).Msg("document sent")
	return nil
}
