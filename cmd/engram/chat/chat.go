// Package chatcmder provides the chat command for interactive sessions
// against a running engram server.
package chatcmder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coldbrewlabs/engram/pkg/cliui"
	"github.com/coldbrewlabs/engram/pkg/config"
	"github.com/coldbrewlabs/engram/pkg/logger"
	"github.com/coldbrewlabs/engram/pkg/sse"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	apiTarget string
	sessionID string
	debug     bool

	logger *zap.Logger
}

// generateRequest is the wire body of POST /generate.
type generateRequest struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
}

const chatLongDesc string = `Start an interactive chat session against a running engram server.

Each exchange is recorded in the session transcript on the server, which
assembles prior history, distilled memories, and recent business context
into every prompt. The session resumes wherever its transcript left off,
so re-running "engram chat --session <id>" continues the conversation.

Examples:
  engram chat
  engram chat --session trip-planning
  engram chat --api-target http://localhost:8000`

const chatShortDesc string = "Interactive chat against a running engram server"

var chatFlags = config.FlagSet{
	config.FlagAPITarget: {
		Name: "api-target", Shorthand: "a",
		ViperKey:    "client.api_target",
		Description: "Engram API server URL",
	},
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, chatFlags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().StringVarP(&cmder.sessionID, "session", "S", "", "Session id to resume (default: a new random session)")

	return cmd
}

func (c *chatCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	fmt.Println()
	if c.sessionID == "" {
		c.sessionID = uuid.NewString()
		fmt.Printf("  %s New session\n", cliui.DimStyle.Render("●"))
	} else {
		fmt.Printf("  %s Resuming session\n", cliui.SuccessMark)
	}

	fmt.Printf("  %s %s\n\n",
		cliui.KeyStyle.Render("Session:"),
		cliui.NameStyle.Render(c.sessionID),
	)
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		if err := c.sendAndStream(input); err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
			continue
		}

		fmt.Println()
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println()
	return nil
}

// sendAndStream posts one turn to the server and streams the reply to stdout.
func (c *chatCommander) sendAndStream(input string) error {
	body, err := json.Marshal(generateRequest{
		SessionID: c.sessionID,
		Prompt:    input,
	})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	c.logger.Debug("sending turn",
		zap.String("api_target", c.apiTarget),
		zap.String("session_id", c.sessionID),
	)

	url := c.apiTarget + "/generate"
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		// LLM responses can be slow
		Timeout: 5 * time.Minute,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr == nil && errResp.Error != "" {
			return fmt.Errorf("server returned status %d: %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	fmt.Print(assistantPrompt)

	reader := sse.NewReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err != nil {
			return fmt.Errorf("reading stream: %w", err)
		}
		if ev == nil {
			// Stream closed without a terminal frame.
			return nil
		}

		var frame sse.Frame
		if err := json.Unmarshal([]byte(ev.Data), &frame); err != nil {
			c.logger.Debug("failed to parse stream frame",
				zap.String("data", ev.Data),
				zap.Error(err),
			)
			continue
		}

		switch {
		case frame.Error != "":
			return fmt.Errorf("generation failed: %s", frame.Error)
		case frame.Status == sse.StatusDone:
			return nil
		default:
			fmt.Print(frame.Token)
		}
	}
}
