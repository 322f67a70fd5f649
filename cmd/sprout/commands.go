package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/sprout/internal/chat"
	"github.com/kalambet/sprout/internal/config"
	"github.com/kalambet/sprout/internal/diagnosis"
)

// --- diagnose ---

type diagnoseResult struct {
	Message        string           `json:"message"`
	Diagnosis      diagnosis.Record `json:"diagnosis"`
	ModelUsed      string           `json:"model_used"`
	AdditionalInfo string           `json:"additional_info,omitempty"`
	UserLabel      string           `json:"user_label,omitempty"`
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <image>",
	Short: "Diagnose a plant from a photo",
	Long: `Upload a plant photo to the running sprout server and print the diagnosis.

Examples:
  sprout diagnose ./monstera.jpg
  sprout diagnose ./fern.png --label "office fern" --info "north window, watered weekly"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, _ := cmd.Flags().GetString("info")
		label, _ := cmd.Flags().GetString("label")
		asJSON, _ := cmd.Flags().GetBool("json")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.postMultipart(cmd.Context(), "/plant/diagnose", "image", args[0], data, map[string]string{
			"additional_info": info,
			"label":           label,
		})
		if err != nil {
			return err
		}

		var result diagnoseResult
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if asJSON {
			return writeIndented(cmd.OutOrStdout(), result)
		}
		printDiagnosis(cmd.OutOrStdout(), result)
		return nil
	},
}

func printDiagnosis(w io.Writer, r diagnoseResult) {
	d := r.Diagnosis
	name := d.Name
	if name == "" {
		name = "Unknown plant"
	}
	if r.UserLabel != "" {
		name += " (" + r.UserLabel + ")"
	}
	fmt.Fprintf(w, "%s\n", colorize(colorBold, name))
	fmt.Fprintf(w, "  status:     %s\n", colorize(statusColor(string(d.Status)), string(d.Status)))
	fmt.Fprintf(w, "  confidence: %d%%\n", d.Confidence)
	for _, f := range []struct{ label, value string }{
		{"problem", d.Problem},
		{"cause", d.Cause},
		{"treatment", d.Treatment},
		{"prevention", d.Prevention},
	} {
		if f.value != "" {
			fmt.Fprintf(w, "  %-11s %s\n", f.label+":", f.value)
		}
	}
	fmt.Fprintf(w, "  %s\n", colorize(colorCyan, "model: "+r.ModelUsed))
}

// --- chat ---

type chatResult struct {
	Message             string      `json:"message"`
	Response            string      `json:"response"`
	ConversationHistory []chat.Turn `json:"conversation_history"`
	ModelUsed           string      `json:"model_used"`
}

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask the plant-care assistant a question",
	Long: `Send a message to the running sprout server.

Pass --history to continue a conversation stored as a JSON array of
{role, content} turns, and --save to write the updated history back.

Examples:
  sprout chat "Why are my basil leaves yellow?"
  sprout chat --history convo.json --save convo.json "What about fertilizer?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")
		historyPath, _ := cmd.Flags().GetString("history")
		savePath, _ := cmd.Flags().GetString("save")
		asJSON, _ := cmd.Flags().GetBool("json")

		history, err := readHistory(historyPath)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.postJSON(cmd.Context(), "/chat", map[string]any{
			"message":              message,
			"conversation_history": history,
		})
		if err != nil {
			return err
		}

		var result chatResult
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if savePath != "" {
			if err := writeHistory(savePath, result.ConversationHistory); err != nil {
				return err
			}
		}

		if asJSON {
			return writeIndented(cmd.OutOrStdout(), result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Response)
		return nil
	},
}

func readHistory(path string) ([]chat.Turn, error) {
	history := []chat.Turn{}
	if path == "" {
		return history, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return history, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return history, nil
	}
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("parsing history %s: %w", path, err)
	}
	return history, nil
}

func writeHistory(path string, history []chat.Turn) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return nil
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadUnchecked()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so the default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> <value>",
	Short: "Store a secret (provider.api_key, server.api_token) in the secrets file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetSecretKey(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Stored %s", args[0])
		return nil
	},
}

func init() {
	diagnoseCmd.Flags().String("info", "", "additional information about the plant")
	diagnoseCmd.Flags().String("label", "", "your name for the plant")
	diagnoseCmd.Flags().Bool("json", false, "print the raw JSON response")

	chatCmd.Flags().String("history", "", "JSON file with prior conversation turns")
	chatCmd.Flags().String("save", "", "write the updated conversation history to this file")
	chatCmd.Flags().Bool("json", false, "print the raw JSON response")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configSetSecretCmd)
}
