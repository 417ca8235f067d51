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
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teradata-labs/seam/pkg/reconciler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the seam daemon with the background reconciler",
	Long:  `Runs seam as a long-lived process. The reconciler periodically advances every active branch toward the head of the migration catalog.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("cron-spec", "", "reconcile schedule (default \"@every 5m\")")
	_ = viper.BindPFlag("reconciler.cron_spec", serveCmd.Flags().Lookup("cron-spec"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, config)
	if err != nil {
		return err
	}
	defer rt.close()

	if !config.Reconciler.Enabled {
		rt.logger.Info("reconciler disabled; idling until shutdown signal")
		<-ctx.Done()
		return nil
	}

	rec := reconciler.New(rt.manager, rt.logger,
		reconciler.WithCronSpec(config.Reconciler.CronSpec),
		reconciler.WithStartupDelay(time.Duration(config.Reconciler.StartupDelaySeconds)*time.Second),
	)
	if err := rec.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	rt.logger.Info("shutdown signal received")
	rec.Stop()
	return nil
}
