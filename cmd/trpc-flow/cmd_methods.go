//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newMethodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the built-in methods",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := newRegistry()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, md := range reg.Methods() {
				params := make([]string, 0, len(md.Params))
				for _, p := range md.Params {
					s := p.Name + " " + p.Type
					if p.IsParams {
						s = "..." + s
					}
					params = append(params, s)
				}
				fmt.Fprintf(out, "%s(%s)\n", md.Key(), strings.Join(params, ", "))
			}
			return nil
		},
	}
}
