package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"shelfscan/internal/scan"
)

var errScanFailed = errors.New("scan failed")

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan one book and add it to the catalog",
		Long: `Open the scanner, wait for the first valid EAN barcode, look it up on
Open Library and save it. Ctrl-C while waiting for a barcode cancels the scan.

Examples:
  shelfscan scan                      # Use SCANNER_DEVICE
  shelfscan scan --device /dev/hidraw0
  echo 9780140449136 | shelfscan scan --device -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStation(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			s, err := st.orch.Scan(cmd.Context())
			if err != nil {
				return err
			}
			_, err = st.follow(cmd.Context(), s)
			return outcome(err)
		},
	}
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep scanning books until interrupted",
		Long: `Run scans back to back. Lookup and save failures are reported and the
next scan starts; the loop stops when the scanner goes away or on Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStation(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			added, err := st.watch(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Catalogued %d book(s).\n", added)
			return err
		},
	}
}

// watch runs sessions until ctx is done or capture itself fails.
func (st *station) watch(ctx context.Context) (int, error) {
	added := 0
	for ctx.Err() == nil {
		s, err := st.orch.Scan(ctx)
		if err != nil {
			return added, err
		}
		res, err := st.follow(ctx, s)
		switch {
		case err == nil:
			if res.State == scan.Succeeded {
				added++
			}
		case errors.Is(err, scan.ErrCancelled):
			return added, nil
		default:
			var f *scan.Failure
			if errors.As(err, &f) && f.Kind == scan.CaptureError {
				if errors.Is(err, io.EOF) {
					// piped input ran out
					return added, nil
				}
				return added, err
			}
		}
	}
	return added, nil
}

func outcome(err error) error {
	switch {
	case err == nil, errors.Is(err, scan.ErrCancelled):
		return nil
	default:
		return fmt.Errorf("%w: %v", errScanFailed, err)
	}
}
