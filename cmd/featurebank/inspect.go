package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	featurebank "github.com/k-tonal/featurebank"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <bank file>",
		Short: "Print the datasets, layouts and totals of a bank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := featurebank.OpenBank(args[0])
			if err != nil {
				return err
			}
			defer bank.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, bank.Path())

			tw := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FEATURE\tROWS\tSOURCES")
			for _, feat := range bank.Features() {
				total, err := bank.TotalRows(feat)
				if err != nil {
					return err
				}
				sources, err := bank.Sources(feat)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\n", feat, total, len(sources))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			infos, err := bank.Info()
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			tw = tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SOURCE\tFEATURE\tDTYPE\tSHAPE\tSIZE")
			for _, info := range infos {
				feats := make([]string, 0, len(info.Features))
				for feat := range info.Features {
					feats = append(feats, feat)
				}
				sort.Strings(feats)
				for _, feat := range feats {
					fi := info.Features[feat]
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						info.Name, feat, fi.DType, shapeString(fi.Shape), fi.Size)
				}
			}
			return tw.Flush()
		},
	}
	return cmd
}

func shapeString(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
