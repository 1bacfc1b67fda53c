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

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Resume a stored session and echo text messages back",
	RunE:  runEcho,
}

func init() {
	rootCmd.AddCommand(echoCmd)
}

func runEcho(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	blob, err := os.ReadFile(sessionFile)
	if err != nil {
		return fmt.Errorf("no stored session (run 'waveline pair' first): %w", err)
	}
	var creds client.Credentials
	if err := creds.UnmarshalBinary(blob); err != nil {
		return err
	}

	handler := &echoHandler{sessionHandler: sessionHandler{sessionFile: sessionFile}}
	conn, err := client.Resume(cfg, creds, handler)
	if err != nil {
		return err
	}
	handler.conn = conn

	conn.Wait()
	return nil
}

type echoHandler struct {
	sessionHandler
	conn *client.Conn
}

func (h *echoHandler) OnMessage(relayed bool, msg *message.ChatMessage) {
	if !relayed || msg.Direction.FromMe {
		return
	}
	text, ok := msg.Content.(message.Text)
	if !ok {
		return
	}
	fmt.Printf("%s: %s\n", msg.Direction.Remote, text)
	if _, err := h.conn.SendMessage(text, msg.Direction.Remote); err != nil {
		fmt.Fprintf(os.Stderr, "echo failed: %v\n", err)
	}
}
