package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/app"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/registry"
	"github.com/joseph-ayodele/vehicle-clearance/internal/repository"
)

var lookupClaim registry.Claim

var lookupCmd = &cobra.Command{
	Use:       "lookup <insurance|emission|hpg>",
	Short:     "Look up identifiers in a registry",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(registry.Insurance), string(registry.Emission), string(registry.HPG)},
	RunE: func(cmd *cobra.Command, args []string) error {
		if lookupClaim.Empty() {
			return fmt.Errorf("at least one identifier flag is required: %w", common.ErrInvalidInput)
		}
		var store *repository.SQLStore
		if cfg.Registry.Source == "postgres" {
			s, err := app.OpenStore(cmd.Context(), cfg.Database, logger)
			if err != nil {
				return err
			}
			defer s.Close()
			store = s
		}
		regs, err := app.Registries(cfg.Registry, store, logger)
		if err != nil {
			return err
		}
		m := regs.For(constants.VerificationCategory(args[0]))
		if m == nil {
			return fmt.Errorf("unknown registry %q: %w", args[0], common.ErrInvalidInput)
		}
		res, err := m.Lookup(cmd.Context(), lookupClaim)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	f := lookupCmd.Flags()
	f.StringVar(&lookupClaim.PlateNumber, "plate", "", "plate number")
	f.StringVar(&lookupClaim.PolicyNumber, "policy", "", "insurance policy number")
	f.StringVar(&lookupClaim.EngineNumber, "engine", "", "engine number")
	f.StringVar(&lookupClaim.ChassisNumber, "chassis", "", "chassis number")
	f.StringVar(&lookupClaim.VIN, "vin", "", "VIN")
}
