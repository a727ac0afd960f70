package cli

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/bufbuild/connect-go"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"

	"github.com/chatloom/chatloom/internal/rpc"
	chatrpc "github.com/chatloom/chatloom/internal/rpc/chat"
	"github.com/chatloom/chatloom/internal/rpc/connectjson"
)

// NewChatCmd sends one chat message to the daemon and prints the reply.
func NewChatCmd(opts *Options) *cobra.Command {
	var userID string
	var sessionID string
	var showComponents bool

	cmd := &cobra.Command{
		Use:   "chat \"<message>\"",
		Short: "Send a message to the daemon and print the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			message := args[0]
			if strings.TrimSpace(message) == "" {
				return fmt.Errorf("message cannot be empty")
			}

			reqBody := rpc.ChatRequest{Message: message, UserID: userID, SessionID: sessionID}
			baseURL := daemonURL(cfg.Server.Addr)

			var resp *rpc.ChatResponse
			switch strings.ToLower(strings.TrimSpace(cfg.Server.Transport)) {
			case "rest":
				resp, err = chatREST(cmd.Context(), baseURL+"/v1/chat", reqBody)
			default:
				resp, err = chatConnect(cmd.Context(), baseURL+chatrpc.ConnectChatProcedure, reqBody)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Answer)
			fmt.Fprintf(out, "[session %s, model %s, type %s]\n", resp.SessionID, resp.Model, resp.ContentType)
			if showComponents {
				data, err := json.MarshalIndent(resp.Data.Components, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User identifier (generated when empty)")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session identifier to continue (generated when empty)")
	cmd.Flags().BoolVar(&showComponents, "components", false, "Print the structured component payload")
	return cmd
}

func chatREST(ctx context.Context, url string, reqBody rpc.ChatRequest) (*rpc.ChatResponse, error) {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errBody rpc.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil && errBody.Error != "" {
			return nil, fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, errBody.Error)
		}
		return nil, fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	var out rpc.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func chatConnect(ctx context.Context, url string, reqBody rpc.ChatRequest) (*rpc.ChatResponse, error) {
	client := connect.NewClient[rpc.ChatRequest, rpc.ChatResponse](buildH2CClient(), url, connect.WithCodec(connectjson.Codec{}))
	resp, err := client.CallUnary(ctx, connect.NewRequest(&reqBody))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func buildH2CClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}
