package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ChatSender delivers messages through the chat gateway's webhook endpoint.
type ChatSender struct {
	URL    string
	Client *http.Client
}

func NewChatSender(url string, timeout time.Duration) *ChatSender {
	return &ChatSender{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

type chatPayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

func (s *ChatSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(chatPayload{To: msg.To, Text: msg.Body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("chat gateway request: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("chat gateway returned %d", resp.StatusCode)
	}
	return nil
}

var _ Sender = (*ChatSender)(nil)
