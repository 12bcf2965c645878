package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/content-workflow/internal/application/port"
)

const (
	receiveIDTypeOpenID = "open_id"
	msgTypeText         = "text"
)

// MessageCreator is the slice of the IM API the messenger needs
type MessageCreator interface {
	Create(ctx context.Context, req *larkIm.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkIm.CreateMessageResp, error)
}

// Messenger implements port.LarkMessageSender
type Messenger struct {
	messages MessageCreator
	logger   *zap.Logger
}

// NewMessenger creates a messenger backed by the SDK client
func NewMessenger(sdkClient *SDKClient, logger *zap.Logger) *Messenger {
	return NewMessengerWithCreator(sdkClient.API().Im.Message, logger)
}

// NewMessengerWithCreator creates a messenger on top of any MessageCreator
func NewMessengerWithCreator(messages MessageCreator, logger *zap.Logger) *Messenger {
	return &Messenger{
		messages: messages,
		logger:   logger,
	}
}

// APIError is a non-zero code returned by the open platform
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lark api error: code=%d, msg=%s", e.Code, e.Msg)
}

// SendMessage sends a plain text message to the user identified by openID
func (m *Messenger) SendMessage(ctx context.Context, openID string, content string) error {
	switch {
	case openID == "":
		return fmt.Errorf("openID cannot be empty")
	case content == "":
		return fmt.Errorf("content cannot be empty")
	}

	req, err := textMessage(openID, content)
	if err != nil {
		return err
	}

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", openID, err)
	}
	if !resp.Success() {
		return &APIError{Code: resp.Code, Msg: resp.Msg}
	}

	if resp.Data != nil && resp.Data.MessageId != nil {
		m.logger.Debug("Lark message sent", zap.String("message_id", *resp.Data.MessageId), zap.String("receive_id", openID))
	}
	return nil
}

func textMessage(openID, content string) (*larkIm.CreateMessageReq, error) {
	body, err := textBody(openID, content)
	if err != nil {
		return nil, err
	}
	return larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDTypeOpenID).
		Body(body).
		Build(), nil
}

// textBody addresses a text message to openID
func textBody(openID, content string) (*larkIm.CreateMessageReqBody, error) {
	text, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return nil, fmt.Errorf("failed to encode text content: %w", err)
	}
	return larkIm.NewCreateMessageReqBodyBuilder().
		ReceiveId(openID).
		MsgType(msgTypeText).
		Content(string(text)).
		Build(), nil
}

var _ port.LarkMessageSender = (*Messenger)(nil)
