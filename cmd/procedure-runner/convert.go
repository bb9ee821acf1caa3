package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/procedure-runner/internal/records"
)

func newConvertCmd() *cobra.Command {
	var operator string
	cmd := &cobra.Command{
		Use:   "convert <csv> [output]",
		Short: "Convert the clinic spreadsheet export into a record file",
		Long: `Convert reads the CSV export of the patient spreadsheet and writes the JSON
record file used by run. The output name gets a _DD_MM suffix with today's
date; without an output argument it is patients_data_DD_MM.json next to the CSV.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			input := args[0]
			output := filepath.Join(filepath.Dir(input), records.DefaultFile)
			if len(args) == 2 {
				output = args[1]
			}
			output = records.OutputName(output, now)

			f, err := os.Open(input)
			if err != nil {
				return err
			}
			defer f.Close()
			list, err := records.ConvertCSV(f, operator, now)
			if err != nil {
				return err
			}
			if err := records.Save(output, list); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Converted %d records to %s\n", len(list), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "", "Professional assigned to every converted record")
	return cmd
}
