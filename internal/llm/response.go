package llm

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
)

// ExtractContent pulls the model text out of a chat response body. Two shapes are
// recognized: choices[0].message.content and content[0].text.
func ExtractContent(body []byte) (string, error) {
	var env struct {
		Choices []struct {
			Message struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", common.InvalidResponse("response is not a JSON envelope", err)
	}
	if len(env.Choices) > 0 && env.Choices[0].Message.Content != nil {
		return *env.Choices[0].Message.Content, nil
	}
	if len(env.Content) > 0 {
		var blocks []struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(env.Content, &blocks); err == nil && len(blocks) > 0 && blocks[0].Text != nil {
			return *blocks[0].Text, nil
		}
	}
	return "", common.InvalidResponse("response has neither choices[0].message.content nor content[0].text", errors.New(truncate(string(body), 256)))
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...(%d bytes)", s[:n], len(s))
}
