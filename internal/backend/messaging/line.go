// Package messaging adapts the LINE Messaging API to the narrow capabilities
// the slip workflow needs: webhook parsing with signature verification,
// text replies and message content download.
package messaging

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/slipledger/server/internal/backend/slip"
)

// ErrInvalidSignature is returned by ParseRequest when the signature header
// does not match the request body.
var ErrInvalidSignature = webhook.ErrInvalidSignature

// InboundEvent is one webhook event translated to the workflow's terms.
// Exactly one of Image or Text is set. ID carries the platform's webhook
// event id, used by the redelivery guard.
type InboundEvent struct {
	ID    string
	Image *slip.ImageEvent
	Text  *slip.TextEvent
}

type Client struct {
	api           *messaging_api.MessagingApiAPI
	blob          *messaging_api.MessagingApiBlobAPI
	channelSecret string
}

func NewClient(channelAccessToken, channelSecret string) (*Client, error) {
	api, err := messaging_api.NewMessagingApiAPI(channelAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging API client: %w", err)
	}
	blob, err := messaging_api.NewMessagingApiBlobAPI(channelAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob API client: %w", err)
	}
	return &Client{
		api:           api,
		blob:          blob,
		channelSecret: channelSecret,
	}, nil
}

// ParseRequest verifies the webhook signature and translates the payload
// into inbound events. Events that are not user image or text messages map
// to nothing and are silently ignored.
func (c *Client) ParseRequest(req *http.Request) ([]InboundEvent, error) {
	callback, err := webhook.ParseRequest(c.channelSecret, req)
	if err != nil {
		return nil, err
	}

	events := make([]InboundEvent, 0, len(callback.Events))
	for _, event := range callback.Events {
		messageEvent, ok := event.(webhook.MessageEvent)
		if !ok {
			continue
		}
		source, ok := messageEvent.Source.(webhook.UserSource)
		if !ok {
			continue
		}

		switch message := messageEvent.Message.(type) {
		case webhook.ImageMessageContent:
			events = append(events, InboundEvent{
				ID: messageEvent.WebhookEventId,
				Image: &slip.ImageEvent{
					SenderID:   source.UserId,
					MessageID:  message.Id,
					ReplyToken: messageEvent.ReplyToken,
				},
			})
		case webhook.TextMessageContent:
			events = append(events, InboundEvent{
				ID: messageEvent.WebhookEventId,
				Text: &slip.TextEvent{
					SenderID:   source.UserId,
					Text:       message.Text,
					ReplyToken: messageEvent.ReplyToken,
				},
			})
		}
	}
	return events, nil
}

// ReplyText sends a single text message to the given reply token.
func (c *Client) ReplyText(ctx context.Context, replyToken, text string) error {
	_, err := c.api.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: text},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// MessageContent downloads the binary content of a message.
func (c *Client) MessageContent(ctx context.Context, messageID string) ([]byte, error) {
	response, err := c.blob.GetMessageContent(messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get message content: %w", err)
	}
	defer func() {
		_ = response.Body.Close()
	}()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read message content: %w", err)
	}
	return data, nil
}
