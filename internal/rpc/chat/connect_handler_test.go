package chat

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bufbuild/connect-go"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	chatsvc "github.com/chatloom/chatloom/internal/chat"
	"github.com/chatloom/chatloom/internal/rpc"
	"github.com/chatloom/chatloom/internal/rpc/connectjson"
	"github.com/chatloom/chatloom/internal/structured"
)

func newConnectClient(t *testing.T, service Service) *connect.Client[rpc.ChatRequest, rpc.ChatResponse] {
	t.Helper()

	path, handler := NewConnectHandler(service, nil)
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot open listener in sandbox: %v", err)
	}

	server := httptest.NewUnstartedServer(h2c.NewHandler(mux, &http2.Server{}))
	server.Listener = ln
	server.Start()
	t.Cleanup(server.Close)

	return connect.NewClient[rpc.ChatRequest, rpc.ChatResponse](
		&http.Client{
			Transport: &http2.Transport{
				AllowHTTP: true,
				DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, network, addr)
				},
			},
		},
		server.URL+path,
		connect.WithCodec(connectjson.Codec{}),
	)
}

func TestConnectHandlerChat(t *testing.T) {
	service := &fakeService{
		chatResult: chatsvc.Result{
			UserID:      "u1",
			SessionID:   "s1",
			Answer:      "hello",
			ContentType: structured.TypeText,
			Components: []structured.Component{
				{Type: "text", Payload: map[string]interface{}{"content": "hello"}},
			},
		},
	}
	client := newConnectClient(t, service)

	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&rpc.ChatRequest{Message: "hi"}))
	require.NoError(t, err)
	require.Equal(t, "hello", resp.Msg.Answer)
	require.Equal(t, "s1", resp.Msg.SessionID)
	require.Len(t, resp.Msg.Data.Components, 1)
}

func TestConnectHandlerRejectsEmptyMessage(t *testing.T) {
	client := newConnectClient(t, &fakeService{})

	_, err := client.CallUnary(context.Background(), connect.NewRequest(&rpc.ChatRequest{}))
	require.Error(t, err)
	require.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}
