package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/vehicle-clearance/internal/app"
	"github.com/joseph-ayodele/vehicle-clearance/internal/parse"
)

var (
	extractMIME string
	parseType   string
	parseText   bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Print the text of a PDF or image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := app.NewExtractor(cfg.OCR, logger).Extract(cmd.Context(), args[0], extractMIME)
		if err != nil {
			return err
		}
		logger.Info("extracted", "method", res.Method, "pages", res.Pages, "chars", len(res.Text), "took", res.Duration)
		_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Text)
		return err
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Extract and parse a document into fields",
	Long:  "Runs OCR on the file and prints the parsed fields as JSON. With --text the file is read as already extracted text.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docType, err := docTypeFlag(parseType)
		if err != nil {
			return err
		}
		var text string
		if parseText {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			text = string(b)
		} else {
			text = app.NewExtractor(cfg.OCR, logger).ExtractText(cmd.Context(), args[0], "")
		}
		return printJSON(cmd.OutOrStdout(), parse.New(logger).Parse(text, docType))
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractMIME, "mime", "", "MIME type; inferred from the extension when empty")
	parseCmd.Flags().StringVar(&parseType, "type", "registration_cert", "document type")
	parseCmd.Flags().BoolVar(&parseText, "text", false, "treat the file as plain text")
}
