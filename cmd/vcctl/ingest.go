package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/app"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/ingest"
)

var (
	ingestType    string
	ingestVehicle string
	ingestHidden  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file-or-dir>",
	Short: "Register document files already on disk",
	Long:  "Creates document records for a file, or for every PDF and image under a directory. Types are guessed from file names unless --type is set.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var vehicleID *uuid.UUID
		if ingestVehicle != "" {
			id, err := uuid.Parse(ingestVehicle)
			if err != nil {
				return fmt.Errorf("invalid --vehicle %q: %w", ingestVehicle, common.ErrInvalidInput)
			}
			vehicleID = &id
		}
		var docType constants.DocumentType
		if ingestType != "" {
			t, err := docTypeFlag(ingestType)
			if err != nil {
				return err
			}
			docType = t
		}

		s, err := app.OpenStore(cmd.Context(), cfg.Database, logger)
		if err != nil {
			return err
		}
		defer s.Close()
		ing := ingest.NewFSIngestor(s.Repositories().Documents, logger)

		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}
		if !info.IsDir() {
			res, err := ing.IngestPath(cmd.Context(), args[0], docType, vehicleID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}
		results, stats, err := ing.IngestDirectory(cmd.Context(), args[0], vehicleID, !ingestHidden)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{"results": results, "stats": stats})
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestType, "type", "", "document type for a single file")
	ingestCmd.Flags().StringVar(&ingestVehicle, "vehicle", "", "vehicle id to link the documents to")
	ingestCmd.Flags().BoolVar(&ingestHidden, "hidden", false, "include hidden files and directories")
}
