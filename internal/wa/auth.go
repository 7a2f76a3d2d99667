package wa

import (
	"context"
	"fmt"

	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/imerr"
	"go.mau.fi/whatsmeow"
)

// Pair runs the QR linking flow. The returned channel yields QR codes until
// the phone scans one, the codes run out or pairing fails, and is then
// closed.
func (b *Backend) Pair(ctx context.Context) (<-chan backend.PairingEvent, error) {
	if b.Paired() {
		return nil, fmt.Errorf("%w: already paired", imerr.ErrInvalidArgument)
	}
	qrChan, err := b.client.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("get QR channel: %w", err)
	}

	out := make(chan backend.PairingEvent, 10)
	go func() {
		defer close(out)

		// Connect must be called after GetQRChannel.
		if err := b.client.Connect(); err != nil {
			b.pairing(ctx, out, backend.PairingEvent{Type: backend.PairingError, Message: err.Error()})
			return
		}
		for item := range qrChan {
			evt, done := pairingEvent(item)
			if evt.Type == "" {
				continue
			}
			b.pairing(ctx, out, evt)
			if done {
				return
			}
		}
	}()
	return out, nil
}

// pairingEvent maps a whatsmeow QR item. done reports the end of the flow.
func pairingEvent(item whatsmeow.QRChannelItem) (evt backend.PairingEvent, done bool) {
	switch item.Event {
	case "code":
		return backend.PairingEvent{Type: backend.PairingCode, Code: item.Code}, false
	case "success":
		return backend.PairingEvent{Type: backend.PairingSuccess, Message: "paired"}, true
	case "timeout":
		return backend.PairingEvent{Type: backend.PairingTimeout, Message: "QR code timeout"}, true
	default:
		if item.Error != nil {
			return backend.PairingEvent{Type: backend.PairingError, Message: item.Error.Error()}, true
		}
		return backend.PairingEvent{}, false
	}
}

func (b *Backend) pairing(ctx context.Context, out chan<- backend.PairingEvent, evt backend.PairingEvent) {
	select {
	case out <- evt:
	case <-ctx.Done():
	}
	if b.bus != nil {
		b.bus.Emit("pairing."+evt.Type, evt)
	}
}
