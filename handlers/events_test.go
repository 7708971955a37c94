package handlers

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestStickerURL(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		format discordgo.StickerFormat
		out    string
	}{
		{format: discordgo.StickerFormatTypePNG, out: "https://cdn.discordapp.com/stickers/123.png"},
		{format: discordgo.StickerFormatTypeAPNG, out: "https://cdn.discordapp.com/stickers/123.png"},
		{format: discordgo.StickerFormatTypeGIF, out: "https://cdn.discordapp.com/stickers/123.gif"},
		{format: discordgo.StickerFormatTypeLottie, out: ""},
	}
	for _, fix := range fixtures {
		sticker := &discordgo.StickerItem{ID: "123", FormatType: fix.format}
		assert.Equal(fix.out, stickerURL(sticker), "format %d", fix.format)
	}
}
