package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const parseModeHTML = "HTML"

// APIError is a Bot API response with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// Client is a minimal Bot API client.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient creates a client for token. Timeout must exceed the long-poll timeout.
func NewClient(apiURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")+"/bot"+token).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		logger:     logger.Named("telegram"),
	}
}

func (c *Client) call(ctx context.Context, method string, body any, result any) error {
	var response apiResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&response).
		SetError(&response).
		Post("/" + method)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	return c.decode(method, resp.StatusCode(), &response, result)
}

func (c *Client) decode(method string, status int, response *apiResponse, result any) error {
	if !response.OK {
		code := response.ErrorCode
		if code == 0 {
			code = status
		}
		return &APIError{Method: method, Code: code, Description: response.Description}
	}
	if result == nil || len(response.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(response.Result, result); err != nil {
		return fmt.Errorf("telegram %s: decoding result: %w", method, err)
	}
	return nil
}

// GetUpdates long-polls for updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	var updates []Update
	err := c.call(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message", "callback_query"},
	}, &updates)
	return updates, err
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup any) error {
	body := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": parseModeHTML,
	}
	if markup != nil {
		body["reply_markup"] = markup
	}
	return c.call(ctx, "sendMessage", body, nil)
}

func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup any) error {
	body := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": parseModeHTML,
	}
	if markup != nil {
		body["reply_markup"] = markup
	}
	return c.call(ctx, "editMessageText", body, nil)
}

// CopyMessage re-sends a message without the forward header, replacing its caption.
func (c *Client) CopyMessage(ctx context.Context, chatID, fromChatID, messageID int64, caption string) error {
	body := map[string]any{
		"chat_id":      chatID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	}
	if caption != "" {
		body["caption"] = caption
		body["parse_mode"] = parseModeHTML
	}
	return c.call(ctx, "copyMessage", body, nil)
}

func (c *Client) SendDocument(ctx context.Context, chatID int64, fileName string, r io.Reader, caption string) error {
	var response apiResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id":    strconv.FormatInt(chatID, 10),
			"caption":    caption,
			"parse_mode": parseModeHTML,
		}).
		SetFileReader("document", fileName, r).
		SetResult(&response).
		SetError(&response).
		Post("/sendDocument")
	if err != nil {
		return fmt.Errorf("telegram sendDocument: %w", err)
	}
	return c.decode("sendDocument", resp.StatusCode(), &response, nil)
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string, alert bool) error {
	body := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		body["text"] = text
		body["show_alert"] = alert
	}
	return c.call(ctx, "answerCallbackQuery", body, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

// SetWebhook registers url; Telegram echoes secret in the X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	c.logger.Info("Registering webhook", zap.String("url", url))
	return c.call(ctx, "setWebhook", map[string]any{
		"url":             url,
		"secret_token":    secret,
		"allowed_updates": []string{"message", "callback_query"},
	}, nil)
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": false}, nil)
}
