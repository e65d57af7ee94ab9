// internal/core/whatsapp/whatsmeow.go
package whatsapp

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"
)

// WhatsmeowProvider talks to WhatsApp Web directly through a paired device
type WhatsmeowProvider struct {
	client   *whatsmeow.Client
	storeURL string
	qrPath   string
}

func NewWhatsmeowProvider(storeURL string) *WhatsmeowProvider {
	return &WhatsmeowProvider{
		storeURL: storeURL,
		qrPath:   "whatsapp-qr.png",
	}
}

func (w *WhatsmeowProvider) Name() string {
	return "Whatsmeow"
}

func (w *WhatsmeowProvider) initStore(ctx context.Context) (*sqlstore.Container, error) {
	dbLog := waLog.Stdout("Database", "ERROR", true)

	if strings.HasPrefix(w.storeURL, "postgres") {
		log.Info().Msg("🌐 Using PostgreSQL database for WhatsApp store")
		container, err := sqlstore.New(ctx, "postgres", w.storeURL, dbLog)
		if err != nil {
			return nil, fmt.Errorf("failed to init PostgreSQL store: %w", err)
		}
		if err := container.Upgrade(ctx); err != nil {
			return nil, fmt.Errorf("failed to upgrade PostgreSQL schema: %w", err)
		}
		return container, nil
	}

	dsn := w.storeURL
	if dsn == "" {
		dsn = "file:store.db?_foreign_keys=on"
	}
	log.Info().Str("dsn", dsn).Msg("💾 Using local SQLite store")
	rawDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if _, err = rawDB.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		log.Warn().Err(err).Msg("⚠️ Failed to enable foreign_keys pragma")
	}

	container := sqlstore.NewWithDB(rawDB, "sqlite", dbLog)
	if err := container.Upgrade(ctx); err != nil {
		return nil, fmt.Errorf("failed to upgrade SQLite schema: %w", err)
	}
	return container, nil
}

// Connect opens the session, pairing by QR code on first use
func (w *WhatsmeowProvider) Connect(ctx context.Context) error {
	container, err := w.initStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to init store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get device: %w", err)
	}

	w.client = whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true))

	if w.client.Store.ID != nil {
		if err := w.client.Connect(); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
		log.Info().Msg("✅ Reconnected to WhatsApp")
		return nil
	}

	qrChan, _ := w.client.GetQRChannel(ctx)
	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	for evt := range qrChan {
		switch evt.Event {
		case "code":
			log.Info().Str("code", evt.Code).Msg("🔗 Scan this QR in WhatsApp")
			if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 256, w.qrPath); err != nil {
				log.Warn().Err(err).Msg("⚠️ Failed to generate QR image")
			} else {
				log.Info().Str("path", w.qrPath).Msg("🖼️ QR code saved")
			}
		case "success":
			log.Info().Msg("✅ WhatsApp login succeeded")
			return nil
		case "timeout":
			return fmt.Errorf("QR code timeout")
		}
	}
	return nil
}

func (w *WhatsmeowProvider) Disconnect() {
	if w.client != nil {
		w.client.Disconnect()
		log.Info().Msg("🔌 Whatsmeow client disconnected")
	}
}

func (w *WhatsmeowProvider) IsConnected() bool {
	return w.client != nil && w.client.IsConnected()
}

// Send delivers a text message and returns the WhatsApp message id
func (w *WhatsmeowProvider) Send(ctx context.Context, phone, text string) (string, error) {
	if w.client == nil {
		return "", fmt.Errorf("client not initialized")
	}

	jid := types.NewJID(digitsOnly(phone), types.DefaultUserServer)
	resp, err := w.client.SendMessage(ctx, jid, &waProto.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", err
	}
	return string(resp.ID), nil
}

// Listen forwards direct text messages to handler until ctx is done
func (w *WhatsmeowProvider) Listen(ctx context.Context, handler InboundHandler) error {
	if w.client == nil {
		return fmt.Errorf("client not initialized")
	}

	id := w.client.AddEventHandler(func(evt interface{}) {
		msg, ok := evt.(*events.Message)
		if !ok {
			return
		}
		if in, ok := inboundFromEvent(msg); ok {
			handler(ctx, in)
		}
	})
	defer w.client.RemoveEventHandler(id)

	log.Info().Msg("👂 Listening for WhatsApp messages...")
	<-ctx.Done()
	return nil
}

// inboundFromEvent skips our own, group and non-text messages
func inboundFromEvent(evt *events.Message) (Inbound, bool) {
	if evt.Info.IsFromMe || evt.Info.IsGroup {
		return Inbound{}, false
	}

	text := evt.Message.GetConversation()
	if text == "" {
		text = evt.Message.GetExtendedTextMessage().GetText()
	}
	if text == "" {
		return Inbound{}, false
	}

	at := evt.Info.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	return Inbound{
		Phone:     "+" + evt.Info.Sender.User,
		Body:      text,
		MessageID: string(evt.Info.ID),
		At:        at.UTC(),
	}, true
}
