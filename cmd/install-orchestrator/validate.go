package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/install-orchestrator/internal/config"
	"github.com/open-edge-platform/install-orchestrator/internal/utils/logger"
)

// createValidateCommand creates the validate subcommand
func createValidateCommand() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate [flags] REQUEST_FILE",
		Short: "Validate a request manifest file",
		Long: `Validate checks a request manifest against the schema without
downloading or installing anything. This allows catching errors in a
manifest before committing to a full install.`,
		Args: cobra.ExactArgs(1),
		RunE: executeValidate,
	}
	return validateCmd
}

// executeValidate handles the validate command logic
func executeValidate(cmd *cobra.Command, args []string) error {
	log := logger.Logger()
	requestFile := args[0]

	log.Infof("validating request manifest: %s", requestFile)

	req, err := config.LoadRequest(requestFile)
	if err != nil {
		return fmt.Errorf("manifest validation failed: %v", err)
	}

	log.Infof("✓ Manifest validation successful for %s", requestFile)
	log.Infof("Artifact: %s v%d", req.PackageName, req.VersionCode)
	log.Infof("Identity: %s", req.Identity)
	if verbose {
		if req.MainExpansion != nil {
			log.Infof("Main expansion: %s -> %s", req.MainExpansion.URL, req.MainExpansion.DestPath)
		}
		if req.PatchExpansion != nil {
			log.Infof("Patch expansion: %s -> %s", req.PatchExpansion.URL, req.PatchExpansion.DestPath)
		}
	}
	return nil
}
