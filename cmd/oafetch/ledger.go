// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pdiddy/oafetch/internal/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Show the download manifest and the unavailability record",
	Long: `Ledger prints manifest.json as a list of downloaded papers and
unavailable.json as an outline grouped by university, category, and author.`,
	RunE: runLedger,
}

func init() {
	ledgerCmd.Flags().Bool("json", false, "print the raw ledger files as JSON")
	ledgerCmd.Flags().Bool("manifest", false, "only print the manifest")
	ledgerCmd.Flags().Bool("unavailable", false, "only print the unavailability record")

	rootCmd.AddCommand(ledgerCmd)
}

func runLedger(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := ledger.Open(cfg.Ledger.Dir, ledger.Options{Logger: logger})
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	onlyManifest, _ := cmd.Flags().GetBool("manifest")
	onlyUnavailable, _ := cmd.Flags().GetBool("unavailable")
	showManifest := onlyManifest || !onlyUnavailable
	showUnavailable := onlyUnavailable || !onlyManifest

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if showManifest {
		m, err := store.Manifest(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(m.Entries); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "Downloaded (%d):\n", m.Len())
			for _, e := range m.Entries {
				year := ""
				if e.Year != nil {
					year = " (" + strconv.Itoa(*e.Year) + ")"
				}
				fmt.Fprintf(out, "  %s%s\n    %s  %s\n", e.Title, year, e.ID, e.Path)
			}
		}
	}

	if showUnavailable {
		tree, err := store.Unavailable(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(tree)
		}
		if showManifest {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "Unavailable (%d):\n", tree.Len())
		tree.Print(out)
	}
	return nil
}
