// Package content defines the provider-agnostic conversation shapes
// exchanged with the upstream completion API.
package content

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType represents supported content block types.
type BlockType string

const (
	BlockTypeText  BlockType = "text"
	BlockTypeImage BlockType = "image_url"
)

// Block represents a single piece of message content. Text blocks carry
// Text; image blocks carry a URL (either remote or a data URL holding
// the already-encoded payload).
type Block struct {
	Type BlockType `json:"type"`
	Text string    `json:"text,omitempty"`
	URL  string    `json:"url,omitempty"`
}

// Message represents one conversation turn.
type Message struct {
	Role    Role    `json:"role"`
	Content []Block `json:"content"`
}

// Text builds a single-block text message.
func Text(role Role, text string) Message {
	return Message{Role: role, Content: []Block{{Type: BlockTypeText, Text: text}}}
}

// ImageWithCaption builds a user message pairing an image URL with an
// optional caption block.
func ImageWithCaption(url, caption string) Message {
	blocks := make([]Block, 0, 2)
	if caption != "" {
		blocks = append(blocks, Block{Type: BlockTypeText, Text: caption})
	}
	blocks = append(blocks, Block{Type: BlockTypeImage, URL: url})
	return Message{Role: RoleUser, Content: blocks}
}
