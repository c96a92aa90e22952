package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/feedbackd/feedbackd/internal/config"
	"github.com/feedbackd/feedbackd/internal/output"
)

var configShowOutput string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(configShowOutput, output.FormatYAML, output.FormatYAML, output.FormatJSON)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if used := viper.ConfigFileUsed(); used != "" {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "# config file: %s\n", used)
		}
		return writeConfig(cmd.OutOrStdout(), cfg, format)
	},
}

func writeConfig(w io.Writer, cfg *config.Config, format output.Format) error {
	redacted := cfg.Redacted()

	var (
		rendered string
		err      error
	)
	if format == output.FormatJSON {
		rendered, err = output.JSON(redacted)
	} else {
		rendered, err = output.YAML(redacted)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, rendered)
	return err
}

func init() {
	configShowCmd.Flags().StringVar(&configShowOutput, "output-format", string(output.FormatYAML), "Output format: yaml|json")
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
