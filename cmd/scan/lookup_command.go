package main

import (
	"github.com/spf13/cobra"

	"shelfscan/internal/barcode"
)

func newLookupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <isbn>",
		Short: "Catalog a book by typing its ISBN instead of scanning it",
		Long: `Skip the scanner and run the lookup and save steps for a typed ISBN-13
or EAN-8. Hyphens and spaces are ignored; the check digit must be valid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := barcode.ParseIdentifier(args[0])
			if err != nil {
				return err
			}

			st, err := ctx.openStation(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			s, err := st.orch.Resolve(cmd.Context(), id)
			if err != nil {
				return err
			}
			_, err = st.follow(cmd.Context(), s)
			return outcome(err)
		},
	}
}
