package upstream

import (
	"encoding/json"
	"strings"
)

type chatCompletionResponse struct {
	Choices []choice `json:"choices"`
}

type choice struct {
	Message      chatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type chatResponseMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type responseBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// extractText validates the response shape and pulls the assistant text
// out of choices[0]. Content may be a plain string or an ordered
// sequence of typed blocks; only text-typed blocks contribute, joined
// with newlines.
func extractText(raw []byte) (string, error) {
	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &MalformedError{Reason: "decode response: " + err.Error(), RawResponse: raw}
	}
	if len(parsed.Choices) == 0 {
		return "", &MalformedError{Reason: "response has no choices", RawResponse: raw}
	}

	body := parsed.Choices[0].Message.Content
	if len(body) == 0 || string(body) == "null" {
		return "", &MalformedError{Reason: "message content is missing", RawResponse: raw}
	}

	var text string
	if err := json.Unmarshal(body, &text); err == nil {
		return text, nil
	}

	var blocks []responseBlock
	if err := json.Unmarshal(body, &blocks); err != nil {
		return "", &MalformedError{Reason: "message content is neither string nor block list", RawResponse: raw}
	}

	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}
