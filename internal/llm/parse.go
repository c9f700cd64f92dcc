package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// maxReplyLen guards against pathological model output.
const maxReplyLen = 64 * 1024

// ParseReply extracts the structured JSON object from raw model output.
// Models wrap JSON in code fences or surround it with prose often enough
// that the parser locates the outermost object instead of trusting the
// content to be bare JSON.
func ParseReply(content string) (*Reply, error) {
	if len(content) > maxReplyLen {
		content = content[:maxReplyLen]
	}

	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model reply")
	}

	var reply Reply
	if err := json.Unmarshal([]byte(content[start:end+1]), &reply); err != nil {
		return nil, fmt.Errorf("decode model reply: %w", err)
	}
	if reply.Resp == "" {
		return nil, fmt.Errorf("model reply missing resp field")
	}

	return &reply, nil
}
