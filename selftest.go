/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSelfTestCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Check that every answer in the question bank accepts reformatted copies of itself.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := loadBank(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			mismatches := bank.Warnings()
			for _, m := range mismatches {
				fmt.Fprintln(out, m)
			}

			if len(mismatches) > 0 {
				return fmt.Errorf("%d self-check mismatches across %d answers", len(mismatches), bank.Len())
			}

			fmt.Fprintf(out, "%d answers ok\n", bank.Len())

			return nil
		},
	}
}
