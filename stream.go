package polymind

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// ============================================================================
// Chat Streaming (Server-Sent Events)
// ============================================================================

// ChatStream is a finite sequence of StreamEvents produced by the backend's
// streaming chat endpoint. The stream ends on an explicit done/error event or
// when the body is exhausted; it is not restartable, so issue a new
// StreamChat call to retry.
type ChatStream struct {
	body     io.ReadCloser
	scanner  *bufio.Scanner
	log      logrus.FieldLogger
	finished bool
}

func newChatStream(body io.ReadCloser, log logrus.FieldLogger) *ChatStream {
	scanner := bufio.NewScanner(body)
	// Content frames can carry large model output in a single line.
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &ChatStream{body: body, scanner: scanner, log: log}
}

// Recv returns the next event, or io.EOF once the stream has terminated.
// The body is decoded incrementally: complete lines only, with any trailing
// partial line retained for the next read; lines without the "data: " prefix
// (comments, blank keep-alives) are ignored; a line whose JSON does not parse
// is logged and skipped rather than aborting the stream.
func (s *ChatStream) Recv() (*StreamEvent, error) {
	if s.finished {
		return nil, io.EOF
	}
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		raw := strings.TrimPrefix(line, "data: ")

		var ev StreamEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			s.log.Warnf("skipping malformed stream frame: %v", err)
			continue
		}
		if ev.Type == EventDone || ev.Type == EventError {
			s.finished = true
		}
		return &ev, nil
	}

	s.finished = true
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	return nil, io.EOF
}

// Close releases the underlying response body. Safe to call at any point,
// including before the stream is drained.
func (s *ChatStream) Close() error {
	s.finished = true
	return s.body.Close()
}

// StreamChat sends a message and returns the token stream of the reply.
// IncludeContext defaults to true and MaxContextMessages to 10 when unset.
// The caller owns the returned stream and must Close it.
func (c *Client) StreamChat(ctx context.Context, opts *StreamChatOptions) (*ChatStream, error) {
	if opts == nil || opts.Message == "" {
		return nil, fmt.Errorf("stream chat: message is required")
	}

	payload := *opts
	if payload.IncludeContext == nil {
		t := true
		payload.IncludeContext = &t
	}
	if payload.MaxContextMessages == 0 {
		payload.MaxContextMessages = 10
	}

	resp, err := c.request(ctx, http.MethodPost, "/webapp/chat/stream", &payload, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return newChatStream(resp.Body, c.log), nil
}
