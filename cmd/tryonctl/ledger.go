package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/tryon/internal/ledger/domain"
	"github.com/spf13/cobra"
)

var errDrift = errors.New("ledger drift detected")

func newLedgerCmd(current func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and adjust account credit balances",
	}

	cmd.AddCommand(
		newLedgerVerifyCmd(current),
		newLedgerGrantCmd(current),
	)

	return cmd
}

func newLedgerVerifyCmd(current func() *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "verify [account-id]",
		Short: "Compare stored balances with the event log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("pass exactly one of an account id or --all")
			}

			var (
				recs []ledgerdomain.Reconciliation
				err  error
			)
			if all {
				recs, err = current().ledger.VerifyAll(cmd.Context())
			} else {
				accountID, parseErr := parseAccountID(args[0])
				if parseErr != nil {
					return parseErr
				}
				var rec *ledgerdomain.Reconciliation
				rec, err = current().ledger.Verify(cmd.Context(), accountID)
				if rec != nil {
					recs = append(recs, *rec)
				}
			}
			if err != nil && !errors.Is(err, ledgerdomain.ErrLedgerInconsistency) {
				return err
			}

			if printErr := printReconciliations(cmd.OutOrStdout(), recs); printErr != nil {
				return printErr
			}
			if err != nil {
				return errDrift
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "verify every account")
	return cmd
}

func newLedgerGrantCmd(current func() *app) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "grant <account-id> <credits>",
		Short: "Add credits to an account outside of a payment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := parseAccountID(args[0])
			if err != nil {
				return err
			}
			credits, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid credits %q: %w", args[1], err)
			}

			result, err := current().ledger.Grant(cmd.Context(), ledgerdomain.GrantRequest{
				AccountID: accountID,
				Credits:   credits,
				Note:      note,
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "granted %d credits to %s (purchase %s), balance %d\n",
				result.Purchase.Credits, accountID, result.Purchase.ID, result.Balance)
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "reason recorded on the purchase")
	return cmd
}

func parseAccountID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid account id %q", raw)
	}
	return id, nil
}

func printReconciliations(out io.Writer, recs []ledgerdomain.Reconciliation) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ACCOUNT\tINITIAL\tPURCHASED\tUSED\tDERIVED\tSTORED\tSTATUS")
	for _, rec := range recs {
		status := "ok"
		if !rec.Consistent() {
			status = fmt.Sprintf("drift %+d", rec.Drift())
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			rec.AccountID, rec.Initial, rec.Purchased, rec.Used, rec.Derived, rec.Stored, status)
	}
	return w.Flush()
}
