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
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/seam/pkg/state"
)

var statusCmd = &cobra.Command{
	Use:   "status [branch-id]",
	Short: "Show migration state for one branch or all active branches",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context(), config)
		if err != nil {
			return err
		}
		defer rt.close()

		if len(args) == 1 {
			return printBranchStatus(cmd, rt, args[0])
		}

		branches, err := rt.registry.ActiveBranches(cmd.Context())
		if err != nil {
			return err
		}
		for _, b := range branches {
			if err := printBranchStatus(cmd, rt, b.ID); err != nil {
				return err
			}
		}
		return nil
	},
}

func printBranchStatus(cmd *cobra.Command, rt *runtime, branchID string) error {
	branch, err := rt.registry.Branch(cmd.Context(), branchID)
	if err != nil {
		return err
	}
	st, err := rt.store.Get(cmd.Context(), branchID)
	if errors.Is(err, state.ErrStateNotFound) {
		fmt.Printf("%-10s %-12s never migrated\n", branch.Code, branch.Provider)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("%-10s %-12s %-28s head=%s retries=%d",
		branch.Code, branch.Provider, st.Status, orDash(st.LastAppliedID), st.RetryCount)
	if st.ErrorDetails != "" {
		fmt.Printf(" error=%q", st.ErrorDetails)
	}
	fmt.Println()
	return nil
}

var pendingCmd = &cobra.Command{
	Use:   "pending <branch-id>",
	Short: "List units not yet applied on a branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context(), config)
		if err != nil {
			return err
		}
		defer rt.close()

		pending, err := rt.manager.ListPending(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("no pending migrations")
			return nil
		}
		for _, id := range pending {
			fmt.Println(id)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <branch-id>",
	Short: "Show applied and pending units plus lifecycle state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context(), config)
		if err != nil {
			return err
		}
		defer rt.close()

		info, err := rt.manager.History(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("branch:   %s (%s)\n", info.BranchCode, info.BranchID)
		fmt.Printf("state:    %s\n", info.Status)
		fmt.Printf("retries:  %d\n", info.RetryCount)
		if !info.LastAttemptAt.IsZero() {
			fmt.Printf("last run: %s\n", info.LastAttemptAt.Format("2006-01-02 15:04:05 MST"))
		}
		if info.Error != "" {
			fmt.Printf("error:    %s\n", info.Error)
		}
		fmt.Printf("applied:  %s\n", orNone(info.Applied))
		fmt.Printf("pending:  %s\n", orNone(info.Pending))
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <branch-id>",
	Short: "Run the schema integrity probe against a branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context(), config)
		if err != nil {
			return err
		}
		defer rt.close()

		ok, err := rt.manager.Validate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("schema validation failed")
		}
		fmt.Println("schema valid")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, pendingCmd, historyCmd, validateCmd)
}

func orNone(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, ", ")
}
