// cmd/coordinatorctl is the operator CLI for ledger audit verification and
// agent admission control, mirroring the teacher's per-concern cobra command
// layout (cmd/cli/ledger.go, cmd/cli/compliance.go).
package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"coordinator-core/core/blacklist"
	"coordinator-core/core/ledger"
)

func main() {
	_ = godotenv.Load(".env")
	viper.AutomaticEnv()

	root := &cobra.Command{Use: "coordinatorctl"}
	root.AddCommand(ledgerCmd())
	root.AddCommand(blacklistCmd())
	root.AddCommand(agentCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func walPath() string {
	if p := viper.GetString("COORD_WAL_PATH"); p != "" {
		return p
	}
	return "./coordinator.wal"
}

func openLedger() (*ledger.Ledger, error) {
	return ledger.Open(ledger.Config{WALPath: walPath(), Log: logrus.NewEntry(logrus.StandardLogger())})
}

// ledgerCmd implements `coordinatorctl ledger verify [from] [to]`, §4.G.
func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "ledger"}

	verify := &cobra.Command{
		Use:   "verify [from] [to]",
		Short: "replay the hash chain over [from, to) and report the first divergence",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger()
			if err != nil {
				return err
			}
			defer l.Close()

			var from, to uint64
			if len(args) > 0 {
				from, _ = strconv.ParseUint(args[0], 10, 64)
			}
			head, _ := l.Head()
			to = head
			if len(args) > 1 {
				to, _ = strconv.ParseUint(args[1], 10, 64)
			}

			var verifyKey ed25519.PublicKey
			if pubB64 := viper.GetString("COORD_LEDGER_PUBKEY"); pubB64 != "" {
				if pub, err := base64.StdEncoding.DecodeString(pubB64); err == nil {
					verifyKey = ed25519.PublicKey(pub)
				}
			}

			if bad := l.Verify(from, to, verifyKey); bad >= 0 {
				fmt.Printf("chain divergence at index %d\n", bad)
				os.Exit(1)
			}
			fmt.Printf("ledger verified clean from %d to %d\n", from, to)
			return nil
		},
	}
	cmd.AddCommand(verify)
	return cmd
}

// blacklistCmd implements `coordinatorctl blacklist verify-audit`, §4.G.
func blacklistCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "blacklist"}

	verify := &cobra.Command{
		Use:   "verify-audit",
		Short: "replay the blacklist subchain using the ledger's own hash routine",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger()
			if err != nil {
				return err
			}
			defer l.Close()

			var verifyKey ed25519.PublicKey
			if pubB64 := viper.GetString("COORD_LEDGER_PUBKEY"); pubB64 != "" {
				if pub, err := base64.StdEncoding.DecodeString(pubB64); err == nil {
					verifyKey = ed25519.PublicKey(pub)
				}
			}

			if bad := blacklist.VerifyAudit(l, verifyKey); bad >= 0 {
				fmt.Printf("blacklist audit divergence at index %d\n", bad)
				os.Exit(1)
			}
			fmt.Println("blacklist audit verified clean")
			return nil
		},
	}
	cmd.AddCommand(verify)
	return cmd
}

// agentCmd implements `coordinatorctl agent approve <id>`, the operator-side
// counterpart of the admin HTTP surface for scripted/offline approval.
func agentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "agent"}

	approve := &cobra.Command{
		Use:   "approve <id>",
		Short: "print the admin API call needed to approve an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := viper.GetString("COORD_ADMIN_ADDR")
			if addr == "" {
				addr = "127.0.0.1:7901"
			}
			fmt.Printf("curl -X POST -H 'x-portal-token: $COORD_PORTAL_TOKEN' http://%s/agents/%s/approve\n", addr, args[0])
			return nil
		},
	}
	cmd.AddCommand(approve)
	return cmd
}
