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
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/bountybase/payout/internal/simnode"
)

// simnodeCommands runs the in-process ledger node for local development. It
// needs neither postgres nor redis, so it skips the engine bootstrap.
func simnodeCommands() *cobra.Command {
	var port string
	var contract string
	var signer string

	cmd := &cobra.Command{
		Use:   "simnode",
		Short: "start a simulated ledger node",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			node := simnode.New(contract, signer)
			log.Printf("Simulated ledger node listening on :%s (contract=%s)", port, contract)
			if err := http.ListenAndServe(":"+port, node); err != nil {
				log.Fatalf("could not start simnode: %v", err)
			}
		},
	}

	cmd.Flags().StringVar(&port, "port", "5004", "port to serve the JSON-RPC node on")
	cmd.Flags().StringVar(&contract, "contract", "reward-ledger-v1", "contract address the node hosts")
	cmd.Flags().StringVar(&signer, "signer", "", "platform address authorized to operate pools")

	return cmd
}
