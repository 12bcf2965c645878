package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockCreator struct {
	CreateFunc func(ctx context.Context, req *larkIm.CreateMessageReq) (*larkIm.CreateMessageResp, error)
	requests   []*larkIm.CreateMessageReq
}

func (m *mockCreator) Create(ctx context.Context, req *larkIm.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkIm.CreateMessageResp, error) {
	m.requests = append(m.requests, req)
	return m.CreateFunc(ctx, req)
}

func okResponse() *larkIm.CreateMessageResp {
	return &larkIm.CreateMessageResp{
		Data: &larkIm.CreateMessageRespData{MessageId: larkcore.StringPtr("om_1")},
	}
}

func TestMessenger_SendMessage(t *testing.T) {
	creator := &mockCreator{
		CreateFunc: func(ctx context.Context, req *larkIm.CreateMessageReq) (*larkIm.CreateMessageResp, error) {
			return okResponse(), nil
		},
	}
	m := NewMessengerWithCreator(creator, zap.NewNop())

	err := m.SendMessage(context.Background(), "ou_rita", "Review needed\n\"Launch post\"")
	require.NoError(t, err)
	require.Len(t, creator.requests, 1)
	require.NotNil(t, creator.requests[0])
}

func TestTextBody(t *testing.T) {
	body, err := textBody("ou_rita", "Review needed\n\"Launch post\"")
	require.NoError(t, err)
	require.NotNil(t, body.ReceiveId)
	require.NotNil(t, body.MsgType)
	require.NotNil(t, body.Content)

	assert.Equal(t, "ou_rita", *body.ReceiveId)
	assert.Equal(t, "text", *body.MsgType)
	assert.Equal(t, `{"text":"Review needed\n\"Launch post\""}`, *body.Content)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*body.Content), &content))
	assert.Equal(t, "Review needed\n\"Launch post\"", content["text"])
}

func TestMessenger_SendMessage_Validation(t *testing.T) {
	creator := &mockCreator{}
	m := NewMessengerWithCreator(creator, zap.NewNop())

	assert.Error(t, m.SendMessage(context.Background(), "", "hello"))
	assert.Error(t, m.SendMessage(context.Background(), "ou_rita", ""))
	assert.Empty(t, creator.requests)
}

func TestMessenger_SendMessage_Failures(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		m := NewMessengerWithCreator(&mockCreator{
			CreateFunc: func(ctx context.Context, req *larkIm.CreateMessageReq) (*larkIm.CreateMessageResp, error) {
				return nil, errors.New("connection reset")
			},
		}, zap.NewNop())

		err := m.SendMessage(context.Background(), "ou_rita", "hello")
		assert.ErrorContains(t, err, "connection reset")
	})

	t.Run("api error", func(t *testing.T) {
		m := NewMessengerWithCreator(&mockCreator{
			CreateFunc: func(ctx context.Context, req *larkIm.CreateMessageReq) (*larkIm.CreateMessageResp, error) {
				return &larkIm.CreateMessageResp{CodeError: larkcore.CodeError{Code: 230013, Msg: "bot has no availability"}}, nil
			},
		}, zap.NewNop())

		err := m.SendMessage(context.Background(), "ou_rita", "hello")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 230013, apiErr.Code)
		assert.ErrorContains(t, err, "code=230013")
	})
}
