package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/bufbuild/connect-go"

	"github.com/chatloom/chatloom/internal/observability"
	"github.com/chatloom/chatloom/internal/rpc"
	"github.com/chatloom/chatloom/internal/rpc/connectjson"
)

const ConnectChatProcedure = "/chatloom.chat.v1.ChatService/Chat"

// NewConnectHandler builds a Connect unary handler for the Chat procedure.
func NewConnectHandler(service Service, metrics *observability.Metrics) (string, http.Handler) {
	h := &connectChatHandler{service: service, metrics: metrics}
	return ConnectChatProcedure, connect.NewUnaryHandler(
		ConnectChatProcedure,
		h.handle,
		connect.WithCodec(connectjson.Codec{}),
	)
}

type connectChatHandler struct {
	service Service
	metrics *observability.Metrics
}

func (h *connectChatHandler) handle(ctx context.Context, req *connect.Request[rpc.ChatRequest]) (*connect.Response[rpc.ChatResponse], error) {
	h.metrics.IncActiveSessions("connect")
	defer h.metrics.DecActiveSessions("connect")

	if req.Msg.Message == "" {
		h.metrics.RecordTransportError("connect", "missing_message")
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("message is required"))
	}

	result, err := h.service.Chat(ctx, req.Msg.UserID, req.Msg.SessionID, req.Msg.Message)
	if err != nil {
		h.metrics.RecordTransportError("connect", "chat")
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(&rpc.ChatResponse{
		UserID:      result.UserID,
		SessionID:   result.SessionID,
		Answer:      result.Answer,
		ContentType: string(result.ContentType),
		Model:       result.Model,
		Data:        rpc.ChatData{Components: result.Components},
	}), nil
}
