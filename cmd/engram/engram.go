// Package engramcmder
package engramcmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/coldbrewlabs/engram/cmd/engram/chat"
	configcmder "github.com/coldbrewlabs/engram/cmd/engram/config"
	consolidatecmder "github.com/coldbrewlabs/engram/cmd/engram/consolidate"
	servecmder "github.com/coldbrewlabs/engram/cmd/engram/serve"
)

const engramLongDesc string = `Engram is a contextual memory engine for conversational assistants.

It records every turn durably, distills long-term memories from each
exchange, extracts structured business facts, and folds whole sessions
into consolidated summaries.

Run services using:
  engram serve          Run the API server
  engram chat           Chat against a running server
  engram consolidate    Fold sessions into a long-term summary`

const engramShortDesc string = "Engram - Contextual Memory Engine"

func NewEngramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engram",
		Short: engramShortDesc,
		Long:  engramLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .engram/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(consolidatecmder.NewConsolidateCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())

	return cmd
}
