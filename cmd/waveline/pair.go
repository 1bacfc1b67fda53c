// Copyright (C) 2026 waveline-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/waveline-project/waveline/client"
	"github.com/waveline-project/waveline/message"
)

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Pair with the phone by QR code",
	Long: `Connect without stored credentials. The pairing payload is printed to
stdout; render it as a QR code and scan it in the mobile app. The session
blob is written to the --session path once the peer acknowledges.`,
	RunE: runPair,
}

func init() {
	rootCmd.AddCommand(pairCmd)
}

func runPair(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	conn, err := client.Connect(cfg, func(qr string) {
		fmt.Printf("scan this payload with the mobile app:\n%s\n", qr)
	}, &sessionHandler{sessionFile: sessionFile})
	if err != nil {
		return err
	}

	conn.Wait()
	return nil
}

// sessionHandler persists credentials and prints lifecycle events; the
// echo command embeds it.
type sessionHandler struct {
	sessionFile string
}

func (h *sessionHandler) OnStateChanged(state client.State) {
	fmt.Printf("state: %s\n", state)
}

func (h *sessionHandler) OnPersistentSessionDataChanged(creds client.Credentials) {
	blob, err := creds.MarshalBinary()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not serialize session: %v\n", err)
		return
	}
	if err := os.WriteFile(h.sessionFile, blob, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "could not store session: %v\n", err)
	}
}

func (h *sessionHandler) OnUserDataChanged(data client.UserData) {
	if u, ok := data.(client.UserJid); ok {
		fmt.Printf("logged in as %s\n", u.Jid)
	}
}

func (h *sessionHandler) OnDisconnect(reason client.DisconnectReason) {
	if reason == client.DisconnectReplaced {
		fmt.Println("session replaced by another client")
	} else {
		fmt.Println("session removed")
	}
	_ = os.Remove(h.sessionFile)
}

func (h *sessionHandler) OnMessage(relayed bool, msg *message.ChatMessage) {}
