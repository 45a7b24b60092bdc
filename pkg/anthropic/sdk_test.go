package anthropic

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSDKMessage(t *testing.T) {
	sdkMsg := &sdk.Message{
		ID:           "msg_test_123",
		Model:        "claude-sonnet-4-5-20250929",
		StopReason:   "end_turn",
		StopSequence: "STOP",
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "Hola"},
			{Type: "text", Text: "mundo"},
		},
		Usage: sdk.Usage{
			InputTokens:              100,
			OutputTokens:             50,
			CacheCreationInputTokens: 2000,
			CacheReadInputTokens:     3000,
		},
	}

	resp := fromSDKMessage(sdkMsg)
	require.NotNil(t, resp)
	assert.Equal(t, "msg_test_123", resp.ID)
	assert.Equal(t, "claude-sonnet-4-5-20250929", resp.Model)
	assert.Equal(t, "end_turn", resp.StopReason)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, "Hola", resp.Content[0].Text)
	assert.Equal(t, int64(100), resp.Usage.InputTokens)
	assert.Equal(t, int64(3000), resp.Usage.CacheReadInputTokens)
}

func TestFromSDKMessage_EmptyContent(t *testing.T) {
	resp := fromSDKMessage(&sdk.Message{ID: "msg_empty", StopReason: "max_tokens"})
	require.NotNil(t, resp)
	assert.Empty(t, resp.Content)
	assert.Equal(t, "max_tokens", resp.StopReason)
}

func TestToSDKMessages_PDFAttachment(t *testing.T) {
	msgs := toSDKMessages([]Message{{
		Role:    "user",
		Content: "Clasifica el documento adjunto.",
		Attachment: &Attachment{
			MediaType: "application/pdf",
			Data:      "JVBERi0xLjQ=",
		},
	}})
	require.Len(t, msgs, 1)
	assert.Equal(t, sdk.MessageParamRoleUser, msgs[0].Role)
	require.Len(t, msgs[0].Content, 2)
	assert.NotNil(t, msgs[0].Content[0].OfText)
	assert.NotNil(t, msgs[0].Content[1].OfDocument)
}

func TestToSDKMessages_ImageAttachment(t *testing.T) {
	msgs := toSDKMessages([]Message{{
		Role:    "user",
		Content: "Clasifica el documento adjunto.",
		Attachment: &Attachment{
			MediaType: "image/png",
			Data:      "iVBORw0KGgo=",
		},
	}})
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Content, 2)
	assert.NotNil(t, msgs[0].Content[1].OfImage)
}

func TestToSDKMessages_AssistantRole(t *testing.T) {
	msgs := toSDKMessages([]Message{{Role: "assistant", Content: "{"}})
	require.Len(t, msgs, 1)
	assert.Equal(t, sdk.MessageParamRoleAssistant, msgs[0].Role)
}

func TestToSDKSystemBlocks_CacheControl(t *testing.T) {
	blocks := toSDKSystemBlocks([]SystemBlock{
		{Text: "prompt", CacheControl: &CacheControl{TTL: "5m"}},
		{Text: "sin cache"},
	})
	require.Len(t, blocks, 2)
	assert.Equal(t, "prompt", blocks[0].Text)
	assert.Equal(t, sdk.CacheControlEphemeralTTL("5m"), blocks[0].CacheControl.TTL)
	assert.Equal(t, "sin cache", blocks[1].Text)
}
