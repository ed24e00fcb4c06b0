// Package consolidatecmder provides the consolidate command for folding
// session transcripts into a long-term user summary.
package consolidatecmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coldbrewlabs/engram/pkg/cliui"
	"github.com/coldbrewlabs/engram/pkg/config"
	"github.com/coldbrewlabs/engram/pkg/logger"
)

type consolidateCommander struct {
	apiTarget string
	sessions  []string
	debug     bool

	logger *zap.Logger
}

// consolidateRequest is the wire body of POST /consolidate.
type consolidateRequest struct {
	UserID     string   `json:"user_id"`
	SessionIDs []string `json:"session_ids"`
}

// consolidateResponse is the wire body of the server's reply.
type consolidateResponse struct {
	Status  string `json:"status"`
	UserID  string `json:"user_id"`
	Summary string `json:"summary"`
	Error   string `json:"error"`
}

const consolidateLongDesc string = `Fold the transcripts of one or more sessions into a single long-term
summary for a user. The summary is embedded and stored durably so future
tooling can recall it.

Consolidating zero sessions is a successful no-op.

Examples:
  engram consolidate alice --sessions trip-planning,billing
  engram consolidate alice --sessions s1 --api-target http://localhost:8000`

const consolidateShortDesc string = "Fold sessions into a long-term user summary"

var consolidateFlags = config.FlagSet{
	config.FlagAPITarget: {
		Name: "api-target", Shorthand: "a",
		ViperKey:    "client.api_target",
		Description: "Engram API server URL",
	},
}

func NewConsolidateCmd() *cobra.Command {
	cmder := &consolidateCommander{}

	cmd := &cobra.Command{
		Use:   "consolidate <user_id>",
		Short: consolidateShortDesc,
		Long:  consolidateLongDesc,
		Args:  cobra.ExactArgs(1),
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
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(args[0])
		},
	}

	config.AddStringFlag(cmd, consolidateFlags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().StringSliceVar(&cmder.sessions, "sessions", nil, "Session ids to consolidate (comma separated)")

	return cmd
}

func (c *consolidateCommander) run(userID string) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	fmt.Println()
	fmt.Printf("  %s %s\n",
		cliui.KeyStyle.Render("User:"),
		cliui.NameStyle.Render(userID),
	)
	fmt.Printf("  %s %s\n\n",
		cliui.KeyStyle.Render("Sessions:"),
		cliui.DimStyle.Render(fmt.Sprintf("%d", len(c.sessions))),
	)

	var result consolidateResponse
	err := cliui.Step(os.Stdout, "Consolidating sessions", func() error {
		var stepErr error
		result, stepErr = c.consolidate(userID)
		return stepErr
	})
	if err != nil {
		return err
	}

	fmt.Println()
	if result.Status == "noop" {
		fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Nothing to consolidate."))
		return nil
	}

	fmt.Printf("  %s\n\n", cliui.KeyStyle.Render("Summary:"))
	for _, line := range strings.Split(strings.TrimSpace(result.Summary), "\n") {
		fmt.Printf("  %s\n", line)
	}
	fmt.Println()

	return nil
}

func (c *consolidateCommander) consolidate(userID string) (consolidateResponse, error) {
	body, err := json.Marshal(consolidateRequest{
		UserID:     userID,
		SessionIDs: c.sessions,
	})
	if err != nil {
		return consolidateResponse{}, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.apiTarget + "/consolidate"
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return consolidateResponse{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		// Consolidation makes a model call per request
		Timeout: 2 * time.Minute,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return consolidateResponse{}, fmt.Errorf("sending request to server: %w", err)
	}
	defer resp.Body.Close()

	var result consolidateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return consolidateResponse{}, fmt.Errorf("decoding response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if result.Error != "" {
			return consolidateResponse{}, fmt.Errorf("server returned status %d: %s", resp.StatusCode, result.Error)
		}
		return consolidateResponse{}, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return result, nil
}
