package wa

import (
	"strings"

	"github.com/matheus3301/imsm/internal/backend"
	"go.mau.fi/whatsmeow/proto/waE2E"
)

// actionPrefix marks an action message in plain text.
const actionPrefix = "/me "

// parseIncoming extracts the text content of a message. Media is reported as
// a placeholder with FlagNonText and any caption appended. ok is false for
// messages with nothing to show, such as reactions and protocol messages.
func parseIncoming(msg *waE2E.Message) (typ backend.MessageType, flags backend.MessageFlags, body string, ok bool) {
	if msg == nil {
		return 0, 0, "", false
	}
	if text := extractTextBody(msg); text != "" {
		if rest, found := strings.CutPrefix(text, actionPrefix); found {
			return backend.MessageAction, 0, rest, true
		}
		return backend.MessageNormal, 0, text, true
	}
	kind := detectMessageType(msg)
	if kind == "text" || kind == "unknown" {
		return 0, 0, "", false
	}
	body = "[" + kind + "]"
	if caption := extractCaption(msg); caption != "" {
		body += " " + caption
	}
	return backend.MessageNormal, backend.FlagNonText, body, true
}

// formatOutgoing renders a typed message as plain text.
func formatOutgoing(typ backend.MessageType, body string) string {
	if typ == backend.MessageAction {
		return actionPrefix + body
	}
	return body
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

func extractCaption(msg *waE2E.Message) string {
	switch {
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetCaption()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage().GetFileName()
	case msg.GetContactMessage() != nil:
		return msg.GetContactMessage().GetDisplayName()
	case msg.GetLocationMessage() != nil:
		return msg.GetLocationMessage().GetName()
	default:
		return ""
	}
}

func detectMessageType(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetContactMessage() != nil:
		return "contact"
	case msg.GetLocationMessage() != nil:
		return "location"
	default:
		return "unknown"
	}
}
