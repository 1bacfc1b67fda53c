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
	"time"

	"github.com/waveline-project/waveline/config"
)

type timerState uint8

const (
	// timerNormal: the long idle interval; expiry sends a keep-alive
	// probe and arms the deathline.
	timerNormal timerState = iota
	// timerDeathline: the short grace interval after a probe; expiry
	// terminates the socket.
	timerDeathline
)

// keepAlive is the single logical liveness timer of a connection. arm is
// called on every inbound frame; the absolute window keeps that cheap: the
// underlying timer is only reset when its pending deadline falls outside
// the new window.
//
// All methods must be called with the session lock held. The expiry
// callback fires on a timer goroutine and receives a generation token; the
// receiver must re-acquire the lock and discard stale generations before
// acting on the timer state.
type keepAlive struct {
	windowMin time.Time
	windowMax time.Time
	state     timerState
	timer     *time.Timer
	gen       uint64
	onExpire  func(gen uint64)
}

func newKeepAlive(window config.Window, state timerState, onExpire func(gen uint64)) *keepAlive {
	k := &keepAlive{onExpire: onExpire}
	k.reset(window, state)
	return k
}

// arm moves the timer into the given state. The deadline is only replaced
// when the pending one cannot satisfy the new window.
func (k *keepAlive) arm(window config.Window, state timerState) {
	k.state = state
	now := time.Now()
	if k.windowMax.Before(now.Add(window.Min)) || k.windowMax.After(now.Add(window.Max)) {
		k.reset(window, state)
	}
}

func (k *keepAlive) reset(window config.Window, state timerState) {
	if k.timer != nil {
		k.timer.Stop()
	}
	now := time.Now()
	k.windowMin = now.Add(window.Min)
	k.windowMax = now.Add(window.Max)
	k.state = state
	k.gen++
	gen := k.gen
	k.timer = time.AfterFunc(window.Max, func() {
		k.onExpire(gen)
	})
}

// valid reports whether a fired callback belongs to the live generation.
func (k *keepAlive) valid(gen uint64) bool {
	return k != nil && k.gen == gen
}

func (k *keepAlive) disarm() {
	if k.timer != nil {
		k.timer.Stop()
		k.timer = nil
	}
	k.gen++
}
