package llmgateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// sseStream implements Stream over an SSE-formatted `data: {...}` HTTP
// response body, matching the teacher's ollama StreamIterator line-by-line
// reading pattern generalized to this chat wire format.
type sseStream struct {
	reader *bufio.Reader
	body   io.ReadCloser
	cancel context.CancelFunc

	mu        sync.Mutex
	token     string
	fullText  strings.Builder
	err       error
	done      bool
	closeOnce sync.Once
}

func newSSEStream(body io.ReadCloser, cancel context.CancelFunc) *sseStream {
	return &sseStream{reader: bufio.NewReader(body), body: body, cancel: cancel}
}

func (s *sseStream) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done || s.err != nil {
		return false
	}

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				s.done = true
				return false
			}
			s.err = fmt.Errorf("reading stream: %w", err)
			return false
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		data := bytes.TrimPrefix(line, []byte("data: "))
		if bytes.Equal(data, []byte("[DONE]")) {
			s.done = true
			return false
		}

		var chunk StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content == "" {
			if choice.FinishReason != "" {
				s.done = true
				return false
			}
			continue
		}

		s.token = choice.Delta.Content
		s.fullText.WriteString(s.token)
		return true
	}
}

func (s *sseStream) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *sseStream) FullText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullText.String()
}

func (s *sseStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *sseStream) Cancel() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.body != nil {
			s.body.Close()
		}
	})
}
