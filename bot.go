package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"nimebot/internal/dispatch"
	"nimebot/internal/logging"
	"nimebot/internal/status"
)

//////////////////////////////////////////////////////////////
// SESSION
//////////////////////////////////////////////////////////////

// newWhatsAppClient opens the sqlite session store and returns a client for
// its first device, creating one when the store is empty.
func newWhatsAppClient(ctx context.Context, dsn string, log zerolog.Logger) (*whatsmeow.Client, error) {
	container, err := sqlstore.New(ctx, "sqlite3", dsn, logging.WhatsApp(log, "Database"))
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}
	return whatsmeow.NewClient(deviceStore, logging.WhatsApp(log, "Client")), nil
}

// connect logs in, printing pairing codes to the terminal and publishing
// them to the status page until the device is linked.
func connect(ctx context.Context, client *whatsmeow.Client, state *status.LoginState, log zerolog.Logger) error {
	if client.Store.ID != nil {
		return client.Connect()
	}

	qrChan, err := client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("qr channel: %w", err)
	}
	if err := client.Connect(); err != nil {
		return err
	}

	go func() {
		for evt := range qrChan {
			switch evt.Event {
			case "code":
				state.SetQR(evt.Code)
				fmt.Println("📱 Scan this code with WhatsApp → Linked devices:")
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			case "success":
				log.Info().Msg("device linked")
			default:
				log.Warn().Str("event", evt.Event).Msg("login flow ended")
			}
		}
	}()
	return nil
}

//////////////////////////////////////////////////////////////
// EVENTS
//////////////////////////////////////////////////////////////

func eventHandler(ctx context.Context, d *dispatch.Dispatcher, state *status.LoginState, log zerolog.Logger) func(interface{}) {
	return func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			in, ok := inboundFrom(v)
			if !ok {
				return
			}
			if !d.Dispatch(ctx, in) {
				log.Debug().Str("chat", in.Chat.String()).Msg("message not dispatched")
			}
		case *events.Connected:
			state.SetConnected(true)
			log.Info().Msg("✨ Nime is online and ready!")
		case *events.Disconnected:
			state.SetConnected(false)
			log.Warn().Msg("disconnected from WhatsApp")
		case *events.LoggedOut:
			state.SetConnected(false)
			log.Error().Int("reason", int(v.Reason)).Msg("logged out, delete the session store and pair again")
		}
	}
}

// inboundFrom converts a received message. Our own messages, status
// broadcasts and messages without text are skipped.
func inboundFrom(v *events.Message) (dispatch.Inbound, bool) {
	if v.Info.IsFromMe || v.Info.Chat.Server == types.BroadcastServer {
		return dispatch.Inbound{}, false
	}
	text := messageText(v.Message)
	if text == "" {
		return dispatch.Inbound{}, false
	}
	return dispatch.Inbound{
		Chat:     v.Info.Chat,
		Sender:   v.Info.Sender,
		PushName: v.Info.PushName,
		IsGroup:  v.Info.IsGroup,
		Text:     text,
	}, true
}

// messageText extracts the text of a plain, extended or captioned media message.
func messageText(m *waProto.Message) string {
	var text string
	switch {
	case m.GetConversation() != "":
		text = m.GetConversation()
	case m.GetExtendedTextMessage() != nil:
		text = m.GetExtendedTextMessage().GetText()
	case m.GetImageMessage() != nil:
		text = m.GetImageMessage().GetCaption()
	case m.GetVideoMessage() != nil:
		text = m.GetVideoMessage().GetCaption()
	case m.GetDocumentMessage() != nil:
		text = m.GetDocumentMessage().GetCaption()
	}
	return strings.TrimSpace(text)
}
