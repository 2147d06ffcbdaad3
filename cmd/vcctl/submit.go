package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/vehicle-clearance/internal/app"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/export"
)

var submitCmd = &cobra.Command{
	Use:   "submit <vehicle-id>",
	Short: "Create the HPG and insurance clearance requests for a vehicle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid vehicle id %q: %w", args[0], common.ErrInvalidInput)
		}
		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		sum, err := a.Orchestrator.ProcessSubmission(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), sum)
	},
}

var (
	exportOut     string
	exportFrom    string
	exportTo      string
	exportVehicle string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write an XLSX report of clearance requests and verifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		var f export.Filter
		var err error
		if f.From, err = dateFlag("from", exportFrom); err != nil {
			return err
		}
		if f.To, err = dateFlag("to", exportTo); err != nil {
			return err
		}
		if exportVehicle != "" {
			id, err := uuid.Parse(exportVehicle)
			if err != nil {
				return fmt.Errorf("invalid --vehicle %q: %w", exportVehicle, common.ErrInvalidInput)
			}
			f.VehicleID = &id
		}

		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := a.Exporter.ClearanceReportXLSX(cmd.Context(), f)
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportOut, b, 0o644); err != nil {
			return err
		}
		logger.Info("export written", "path", exportOut, "bytes", len(b))
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := app.OpenStore(cmd.Context(), cfg.Database, logger)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Migrate(cmd.Context()); err != nil {
			return err
		}
		logger.Info("migrations applied", "database", s.Dialect())
		return nil
	},
}

func dateFlag(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("--%s must be YYYY-MM-DD: %w", name, common.ErrInvalidInput)
	}
	return &t, nil
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "clearance-report.xlsx", "output file")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "first day (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "last day (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportVehicle, "vehicle", "", "limit to one vehicle id")
}
