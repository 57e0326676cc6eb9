package generate

import (
	"bufio"
	"bytes"
	"io"
)

// doneSentinel terminates an OpenAI-style event stream.
const doneSentinel = "[DONE]"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type apiError struct {
	Message string `json:"message"`
	Code    any    `json:"code,omitempty"`
}

// streamChunk is one `data:` payload of a streaming chat completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

func (c *streamChunk) content() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// sseReader yields the data payloads of a server-sent event stream.
// Comment lines (": OPENROUTER PROCESSING") and other fields are skipped.
type sseReader struct {
	r *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{r: bufio.NewReader(r)}
}

// next returns the next data payload, or io.EOF at the end of the stream.
// tick is called after every line so callers can reset an idle timer.
func (s *sseReader) next(tick func()) ([]byte, error) {
	for {
		line, err := s.r.ReadBytes('\n')
		if tick != nil && len(line) > 0 {
			tick()
		}
		line = bytes.TrimRight(line, "\r\n")
		if data, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			data = bytes.TrimSpace(data)
			if len(data) > 0 {
				return data, nil
			}
		}
		if err != nil {
			return nil, err
		}
	}
}
