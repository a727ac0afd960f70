package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/chatloom/chatloom/internal/rpc"
)

// NewSessionsCmd groups session management subcommands.
func NewSessionsCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List, show, and delete stored conversations",
	}

	cmd.AddCommand(newSessionsListCmd(opts))
	cmd.AddCommand(newSessionsShowCmd(opts))
	cmd.AddCommand(newSessionsDeleteCmd(opts))
	return cmd
}

func newSessionsListCmd(opts *Options) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			endpoint := daemonURL(cfg.Server.Addr) + "/v1/sessions?user_id=" + url.QueryEscape(userID)
			var sessions []rpc.Session
			if err := getJSON(cmd.Context(), endpoint, &sessions); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions found.")
				return nil
			}
			for _, session := range sessions {
				title := session.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Fprintf(out, "%s  %s  messages=%d  updated=%s\n",
					session.SessionID, title, session.MessageCount, session.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User identifier")
	return cmd
}

func newSessionsShowCmd(opts *Options) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			endpoint := fmt.Sprintf("%s/v1/sessions/%s?user_id=%s",
				daemonURL(cfg.Server.Addr), url.PathEscape(args[0]), url.QueryEscape(userID))
			var session rpc.Session
			if err := getJSON(cmd.Context(), endpoint, &session); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if session.Title != "" {
				fmt.Fprintf(out, "# %s\n", session.Title)
			}
			for _, msg := range session.Messages {
				fmt.Fprintf(out, "[%s] %s\n", msg.Role, msg.Content)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User identifier")
	return cmd
}

func newSessionsDeleteCmd(opts *Options) *cobra.Command {
	var userID string
	var all bool

	cmd := &cobra.Command{
		Use:   "delete [session-id]",
		Short: "Delete one session, or all sessions for a user with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			if !all && len(args) == 0 {
				return fmt.Errorf("session-id is required unless --all is set")
			}

			base := daemonURL(cfg.Server.Addr)
			endpoint := base + "/v1/sessions?user_id=" + url.QueryEscape(userID)
			if !all {
				endpoint = fmt.Sprintf("%s/v1/sessions/%s?user_id=%s",
					base, url.PathEscape(args[0]), url.QueryEscape(userID))
			}

			if err := doDelete(cmd.Context(), endpoint); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User identifier")
	cmd.Flags().BoolVar(&all, "all", false, "Delete every session belonging to the user")
	return cmd
}

func getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errBody rpc.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil && errBody.Error != "" {
			return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, errBody.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func doDelete(ctx context.Context, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errBody rpc.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil && errBody.Error != "" {
			return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, errBody.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	return nil
}
