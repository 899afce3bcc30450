/*
Copyright 2025 Bountybase Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bountybase/payout"
	"github.com/bountybase/payout/config"
	"github.com/bountybase/payout/database"
	"github.com/bountybase/payout/internal/notification"
)

// Payout represents the CLI application, encapsulating the root Cobra command.
type Payout struct {
	cmd *cobra.Command
}

// payoutInstance holds the settlement engine and its configuration for the
// lifetime of a command.
type payoutInstance struct {
	payout *payout.Payout
	cnf    *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the settlement engine before
// any subcommand runs.
func preRun(app *payoutInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("payout.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newPayout, err := setupPayout(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.payout = newPayout
		app.cnf = cnf

		return nil
	}
}

// setupPayout connects the settlement mirror database and builds the engine
// from the fetched configuration.
func setupPayout(cfg *config.Configuration) (*payout.Payout, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newPayout, err := payout.NewPayout(context.Background(), db)
	if err != nil {
		return nil, fmt.Errorf("error creating payout engine: %v", err)
	}
	return newPayout, nil
}

// NewCLI creates the command-line interface for the payout service.
func NewCLI() *Payout {
	var configFile string
	b := &payoutInstance{}

	var rootCmd = &cobra.Command{
		Use:   "payout",
		Short: "Bounty reward settlement engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./payout.json", "Configuration file for the payout service")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))
	rootCmd.AddCommand(configCommands())
	rootCmd.AddCommand(simnodeCommands())

	return &Payout{cmd: rootCmd}
}

func (w Payout) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
