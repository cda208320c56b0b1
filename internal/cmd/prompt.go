package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/orchestrator"
	"github.com/weftlabs/weft/internal/queue"
)

var promptCmd = &cobra.Command{
	Use:   "prompt <feature> <agent> [text]",
	Short: "Submit a prompt to an agent's mailbox",
	Long: `Queue a prompt for an agent working on a feature. The prompt text is
taken from the argument, or from stdin when omitted.

The conversation id controls threading: "auto" derives a stable id from
the feature and agent, "new" generates a fresh one, and any other value
is used verbatim. An empty id disables threading.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runPrompt,
}

var (
	promptRevision     int
	promptConversation string
	promptWait         bool
)

func init() {
	promptCmd.Flags().IntVar(&promptRevision, "revision", 0, "revision number for revised prompts")
	promptCmd.Flags().StringVar(&promptConversation, "conversation", orchestrator.AutoConversationID, "conversation id (auto, new, or explicit)")
	promptCmd.Flags().BoolVar(&promptWait, "wait", false, "block until the agent writes a result")
	rootCmd.AddCommand(promptCmd)
}

// resolveConversationID expands the conversation flag shorthands.
func resolveConversationID(flag, featureID, agentID string) string {
	switch flag {
	case orchestrator.AutoConversationID:
		return queue.ConversationID(featureID, agentID)
	case "new":
		return uuid.NewString()
	default:
		return flag
	}
}

func runPrompt(cmd *cobra.Command, args []string) error {
	featureID, agentID := args[0], args[1]

	var text string
	if len(args) == 3 {
		text = args[2]
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("prompt text is empty")
	}

	rt, err := newRuntime(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer rt.close()

	conversationID := resolveConversationID(promptConversation, featureID, agentID)
	submitted := time.Now()

	path, err := rt.orch.SubmitPrompt(featureID, agentID, text, promptRevision, conversationID)
	if err != nil {
		return err
	}
	fmt.Printf("Prompt queued: %s\n", path)

	if !promptWait {
		return nil
	}

	timeout := rt.cfg.Runtime.ResultTimeout()
	fmt.Printf("Waiting up to %s for a result...\n", timeout)

	result, err := rt.orch.WaitForResult(cmd.Context(), featureID, agentID, timeout, submitted)
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("no result within %s", timeout)
	}

	fmt.Println()
	fmt.Println(result.OutputText)
	return nil
}
