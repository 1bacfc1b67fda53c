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
	"strconv"

	"github.com/waveline-project/waveline/internal/metrics"
	"github.com/waveline-project/waveline/node"
)

// Response is the payload handed to a completion callback: exactly one of
// JSON or Node is set, depending on the frame kind the reply arrived on.
type Response struct {
	JSON []byte
	Node *node.Node
}

// completion is a one-shot callback keyed by frame tag. Invoked without
// the session lock held.
type completion func(resp Response)

// pendingTable maps outstanding frame tags to their completions. Not
// self-locking: the session lock guards it.
type pendingTable struct {
	callbacks  map[string]completion
	tagCounter uint32
}

func newPendingTable() *pendingTable {
	return &pendingTable{callbacks: make(map[string]completion)}
}

// allocTag returns the next client-side correlation tag.
func (p *pendingTable) allocTag() string {
	tag := p.tagCounter
	p.tagCounter++
	return strconv.FormatUint(uint64(tag), 10)
}

// register stores a completion for the tag. Each entry is consumed exactly
// once, either by take or by drop.
func (p *pendingTable) register(tag string, cb completion) {
	if cb == nil {
		return
	}
	p.callbacks[tag] = cb
	metrics.PendingRequests.Set(float64(len(p.callbacks)))
}

// take removes and returns the completion for the tag, if any.
func (p *pendingTable) take(tag string) (completion, bool) {
	cb, ok := p.callbacks[tag]
	if ok {
		delete(p.callbacks, tag)
		metrics.PendingRequests.Set(float64(len(p.callbacks)))
	}
	return cb, ok
}

// drop releases every registered completion without invoking it.
func (p *pendingTable) drop() {
	p.callbacks = make(map[string]completion)
	metrics.PendingRequests.Set(0)
}
