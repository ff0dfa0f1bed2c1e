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
	"os"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-flow-go/graph"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate PROJECT...",
		Short: "Load saved projects against the built-in methods and report problems",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := newRegistry()
			if err != nil {
				return err
			}
			failed := 0
			out := cmd.OutOrStdout()
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err == nil {
					var g *graph.Graph
					if g, err = graph.LoadProject(data, reg); err == nil {
						fmt.Fprintf(out, "ok   %s: flow %q, %d nodes, %d triggers\n",
							path, g.Name, len(g.Nodes()), len(g.GlobalTriggers()))
						continue
					}
				}
				failed++
				fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d projects failed validation", failed, len(args))
			}
			return nil
		},
	}
}
