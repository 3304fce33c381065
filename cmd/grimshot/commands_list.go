package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/timdodge/grimshot/internal/screenshot"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available outputs",
	Args:  cobra.NoArgs,
	Run:   runList,
}

func init() {
	listCmd.Flags().Bool("json", false, "Output in JSON format")
}

type listJSON struct {
	Outputs []screenshot.Output `json:"outputs"`
}

func runList(cmd *cobra.Command, args []string) {
	outputs, err := screenshot.ListOutputs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	jsonFlag, _ := cmd.Flags().GetBool("json")
	if err := printOutputs(os.Stdout, outputs, jsonFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printOutputs(w io.Writer, outputs []screenshot.Output, asJSON bool) error {
	if asJSON {
		data, err := json.Marshal(listJSON{Outputs: outputs})
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	for _, o := range outputs {
		line := fmt.Sprintf("%s: %dx%d+%d+%d scale=%d transform=%s",
			o.Name, o.Geometry.Width, o.Geometry.Height, o.Geometry.X, o.Geometry.Y, o.Scale, o.Transform)
		if o.Description != "" {
			line += " " + o.Description
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
