package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
)

var (
	cfgPath string
	cfg     *common.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:          "vcctl",
	Short:        "Vehicle clearance toolkit",
	Long:         "Extracts and parses vehicle documents, queries registries, submits vehicles for HPG and insurance clearance, and exports reports.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := common.LoadConfig(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = common.NewLogger(cfg.Log)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("VC_CONFIG"), "path to a YAML config file")
	rootCmd.AddCommand(extractCmd, parseCmd, lookupCmd, ingestCmd, submitCmd, exportCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error onto a process status: 2 for bad input, 3 for a
// missing record, 1 otherwise.
func exitCode(err error) int {
	switch status.Code(common.ToStatus(err)) {
	case codes.OK:
		return 0
	case codes.InvalidArgument:
		return 2
	case codes.NotFound:
		return 3
	default:
		return 1
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func docTypeFlag(s string) (constants.DocumentType, error) {
	t, ok := constants.CanonicalizeDocumentType(s)
	if !ok {
		return "", fmt.Errorf("unknown document type %q (one of %v): %w", s, constants.DocumentTypes(), common.ErrInvalidInput)
	}
	return t, nil
}
