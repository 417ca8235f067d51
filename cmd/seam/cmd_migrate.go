// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/seam/pkg/manager"
)

var migrateToID string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back branch migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up <branch-id>",
	Short: "Bring one branch forward to the head of the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context(), config)
		if err != nil {
			return err
		}
		defer rt.close()
		res := rt.manager.ApplyOne(cmd.Context(), args[0], migrateToID)
		printResult(res)
		if !res.Success {
			return fmt.Errorf("migration failed: %s", res.Error)
		}
		return nil
	},
}

var migrateUpAllCmd = &cobra.Command{
	Use:   "up-all",
	Short: "Bring every active branch forward to the head of the catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := buildRuntime(cmd.Context(), config)
		if err != nil {
			return err
		}
		defer rt.close()
		agg := rt.manager.ApplyAll(cmd.Context())
		printAggregate(agg)
		if !agg.Success {
			return fmt.Errorf("migration failed on %d branch(es)", agg.Failed)
		}
		return nil
	},
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "rollback <branch-id>",
	Short: "Revert the most recently applied unit on one branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context(), config)
		if err != nil {
			return err
		}
		defer rt.close()
		res := rt.manager.RollbackLast(cmd.Context(), args[0])
		printResult(res)
		if !res.Success {
			return fmt.Errorf("rollback failed: %s", res.Error)
		}
		return nil
	},
}

var migrateRollbackAllCmd = &cobra.Command{
	Use:   "rollback-all",
	Short: "Revert the most recently applied unit on every active branch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := buildRuntime(cmd.Context(), config)
		if err != nil {
			return err
		}
		defer rt.close()
		agg := rt.manager.RollbackAll(cmd.Context())
		printAggregate(agg)
		if !agg.Success {
			return fmt.Errorf("rollback failed on %d branch(es)", agg.Failed)
		}
		return nil
	},
}

func init() {
	migrateUpCmd.Flags().StringVar(&migrateToID, "to", "", "stop after this migration id (forward only)")
	migrateCmd.AddCommand(migrateUpCmd, migrateUpAllCmd, migrateRollbackCmd, migrateRollbackAllCmd)
	rootCmd.AddCommand(migrateCmd)
}

func printResult(res manager.Result) {
	status := "OK"
	if !res.Success {
		status = "FAILED"
		if res.Busy {
			status = "BUSY"
		}
	}
	fmt.Printf("%-8s %s (%s)\n", status, res.BranchCode, res.BranchID)
	if len(res.AppliedIDs) > 0 {
		fmt.Printf("  units:    %s\n", strings.Join(res.AppliedIDs, ", "))
	}
	fmt.Printf("  head:     %s\n", orDash(res.LastAppliedID))
	fmt.Printf("  state:    %s\n", res.Status)
	fmt.Printf("  duration: %s\n", res.Duration.Round(time.Millisecond))
	if res.Error != "" {
		fmt.Printf("  detail:   %s\n", res.Error)
	}
}

func printAggregate(agg manager.AggregateResult) {
	for _, res := range agg.Results {
		printResult(res)
	}
	fmt.Printf("branches: %d ok, %d failed, %d busy (%s)\n",
		agg.Succeeded, agg.Failed, agg.Busy, agg.Duration.Round(time.Millisecond))
	if agg.Error != "" {
		fmt.Printf("error: %s\n", agg.Error)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
