package session

import "strings"

// Channel is the coarse transport a session went through.
type Channel string

// Channels.
const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelText     Channel = "text"
	ChannelSpeech   Channel = "speech"
)

const (
	whatsAppMarker = "whatsapp:"
	textMarker     = "us-east-1"
)

// ClassifyChannel infers the channel from the shape of a session identifier.
// The WhatsApp marker wins over the region marker.
func ClassifyChannel(sessionID string) Channel {
	switch {
	case strings.Contains(sessionID, whatsAppMarker):
		return ChannelWhatsApp
	case strings.Contains(sessionID, textMarker):
		return ChannelText
	default:
		return ChannelSpeech
	}
}
