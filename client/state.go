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

package client

import (
	"encoding/json"
	"fmt"

	"github.com/waveline-project/waveline/crypto"
)

// Credentials is the persistent session record. It is the only state the
// core produces that outlives a connection; serialize it with
// MarshalBinary/UnmarshalBinary (JSON) or any external serializer.
type Credentials struct {
	ClientToken string   `json:"clientToken"`
	ServerToken string   `json:"serverToken"`
	ClientID    [8]byte  `json:"clientId"`
	EncKey      [32]byte `json:"encKey"`
	MacKey      [32]byte `json:"macKey"`
}

// MarshalBinary encodes the credentials as an opaque blob.
func (c Credentials) MarshalBinary() ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalBinary decodes a blob produced by MarshalBinary.
func (c *Credentials) UnmarshalBinary(data []byte) error {
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("invalid session blob: %w", err)
	}
	return nil
}

type sessionPhase uint8

const (
	phasePendingNew sessionPhase = iota
	phasePendingPersistent
	phaseEstablished
	phaseTornDown
)

// sessionState is the tagged session variant. keyPair and qrSink are only
// set in phasePendingNew, where creds holds just the client id; the full
// creds are set from phasePendingPersistent on.
type sessionState struct {
	phase   sessionPhase
	keyPair *crypto.KeyPair
	qrSink  func(qr string)
	creds   Credentials
}
