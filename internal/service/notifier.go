package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mdp/qrterminal/v3"
	qrcode "github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"reseller-hub/internal/config"
	"reseller-hub/internal/model"
	"reseller-hub/pkg/logger"
)

const pairingQRFile = "whatsapp-qrcode.png"

// WhatsAppNotifier pushes shipment and payment notices to a WhatsApp chat
type WhatsAppNotifier struct {
	client      *whatsmeow.Client
	container   *sqlstore.Container
	destination types.JID
	logger      *logger.Logger

	handlerOnce sync.Once
}

// NewWhatsAppNotifier opens the session store and prepares the client
func NewWhatsAppNotifier(ctx context.Context, cfg config.NotifierConfig, log *logger.Logger) (*WhatsAppNotifier, error) {
	destination, err := types.ParseJID(cfg.DestinationJID)
	if err != nil {
		return nil, fmt.Errorf("invalid destination JID: %w", err)
	}
	if destination.User == "" {
		return nil, fmt.Errorf("invalid destination JID %q", cfg.DestinationJID)
	}

	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", cfg.DBPath), waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return &WhatsAppNotifier{
		client:      whatsmeow.NewClient(deviceStore, waLog.Noop),
		container:   container,
		destination: destination,
		logger:      log.WithComponent("notifier"),
	}, nil
}

// Connect connects with the stored session, pairing by QR code when there is none
func (n *WhatsAppNotifier) Connect(ctx context.Context) error {
	n.handlerOnce.Do(func() { n.client.AddEventHandler(n.handleEvent) })

	if n.client.Store.ID != nil {
		n.logger.Info("Existing session found, connecting...")
		if err := n.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		return nil
	}

	n.logger.Info("No logged in session found, starting QR code pairing...")
	qrChan, err := n.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}
	if err := n.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	refreshes := 0
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			refreshes++
			n.showPairingCode(evt.Code, refreshes)
		case "success":
			n.logger.Info("Pairing successful")
			return nil
		case "timeout":
			return fmt.Errorf("QR code scan timeout")
		case "error":
			return fmt.Errorf("QR code error: %v", evt.Error)
		default:
			n.logger.Info("QR channel event", "event", evt.Event)
		}
	}

	if !n.client.IsLoggedIn() {
		return fmt.Errorf("pairing ended without login")
	}
	return nil
}

func (n *WhatsAppNotifier) showPairingCode(code string, refreshes int) {
	if err := qrcode.WriteFile(code, qrcode.Medium, 512, pairingQRFile); err != nil {
		n.logger.Error("Failed to generate QR code PNG", "error", err)
	}
	if refreshes == 1 {
		fmt.Println("Scan with WhatsApp > Settings > Linked Devices > Link a Device")
	}
	qrterminal.GenerateHalfBlock(code, qrterminal.L, os.Stdout)
	n.logger.Info("QR code ready", "file", pairingQRFile, "refresh_count", refreshes)
}

// Disconnect disconnects from WhatsApp
func (n *WhatsAppNotifier) Disconnect() {
	n.client.Disconnect()
	n.logger.Info("WhatsApp client disconnected")
}

// IsConnected checks if client is connected
func (n *WhatsAppNotifier) IsConnected() bool {
	return n.client.IsConnected()
}

// Status summarizes the notifier session
func (n *WhatsAppNotifier) Status() map[string]any {
	status := map[string]any{
		"connected":   n.client.IsConnected(),
		"loggedIn":    n.client.IsLoggedIn(),
		"destination": n.destination.String(),
	}
	if n.client.Store.ID != nil {
		status["device"] = n.client.Store.ID.String()
	}
	return status
}

// JoinedGroups lists the groups the paired account belongs to, so an
// operator can pick a destination JID.
func (n *WhatsAppNotifier) JoinedGroups(ctx context.Context) ([]*types.GroupInfo, error) {
	if !n.IsConnected() {
		return nil, ErrNotifierDisconnected
	}
	return n.client.GetJoinedGroups(ctx)
}

// OnShipmentEvent implements ShipmentObserver for delivered and failed shipments
func (n *WhatsAppNotifier) OnShipmentEvent(ctx context.Context, event model.ShipmentEvent) error {
	if event.Event != model.EventShipmentDelivered && event.Event != model.EventShipmentFailed {
		return nil
	}
	return n.send(ctx, formatShipmentMessage(event))
}

// NotifyPayments announces settled PIX payments
func (n *WhatsAppNotifier) NotifyPayments(ctx context.Context, settled []model.SettledPix) error {
	for _, p := range settled {
		if err := n.send(ctx, formatPaymentMessage(p)); err != nil {
			return err
		}
	}
	return nil
}

func (n *WhatsAppNotifier) send(ctx context.Context, text string) error {
	if !n.IsConnected() {
		return ErrNotifierDisconnected
	}

	resp, err := n.client.SendMessage(ctx, n.destination, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	n.logger.WithRecipient(n.destination.String()).Debug("Notification sent", "message_id", resp.ID)
	return nil
}

func (n *WhatsAppNotifier) handleEvent(evt any) {
	switch v := evt.(type) {
	case *events.Connected:
		n.logger.Info("WhatsApp client connected")
	case *events.Disconnected:
		n.logger.Warn("WhatsApp client disconnected")
	case *events.LoggedOut:
		n.logger.Error("Device logged out", "reason", v.Reason)
	}
}

func formatShipmentMessage(event model.ShipmentEvent) string {
	s := event.Shipment
	var b strings.Builder
	switch event.Event {
	case model.EventShipmentDelivered:
		b.WriteString("✅ ENVIO ENTREGUE\n")
	case model.EventShipmentFailed:
		b.WriteString("❌ ENVIO FALHOU\n")
	default:
		b.WriteString("ℹ️ ENVIO ATUALIZADO\n")
	}
	fmt.Fprintf(&b, "ID: %s\n", s.ID)
	fmt.Fprintf(&b, "Cliente: %s\n", s.RecipientName)
	fmt.Fprintf(&b, "Kwai ID: %s\n", s.RecipientID)
	fmt.Fprintf(&b, "Diamantes: %d\n", s.Quantity)
	fmt.Fprintf(&b, "Tentativas: %d", s.Attempts)
	if event.Provenance != "" {
		fmt.Fprintf(&b, "\nModo: %s", event.Provenance)
	}
	if event.Message != "" {
		fmt.Fprintf(&b, "\n%s", event.Message)
	}
	return b.String()
}

func formatPaymentMessage(p model.SettledPix) string {
	return fmt.Sprintf("💰 PIX RECEBIDO\nTXID: %s\nValor: R$ %s\nHorário: %s",
		p.TxID, p.Amount, p.PaidAt.Format("02/01/2006 15:04:05"))
}
