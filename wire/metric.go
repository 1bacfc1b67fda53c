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

package wire

// Metric classifies an outgoing binary frame for the peer's bookkeeping.
// Advisory only.
type Metric byte

const (
	MetricNone Metric = iota
	MetricDebugLog
	MetricQueryResume
	MetricQueryReceipt
	MetricQueryMedia
	MetricQueryChat
	MetricQueryContacts
	MetricQueryMessages
	MetricPresence
	MetricPresenceSubscribe
	MetricGroup
	MetricRead
	MetricChat
	MetricReceived
	MetricPic
	MetricStatus
	MetricMessage
	MetricQueryActions
	MetricBlock
	MetricQueryGroup
	MetricQueryPreview
	MetricQueryEmoji
	MetricQueryMessageInfo
	MetricSpam
	MetricQuerySearch
	MetricQueryIdentity
	MetricQueryURL
	MetricProfile
	MetricContact
	MetricQueryVcard
	MetricQueryStatus
	MetricQueryStatusUpdate
	MetricPrivacyStatus
	MetricQueryLiveLocations
	MetricLiveLocation
	MetricQueryVname
	MetricQueryLabels
	MetricCall
	MetricQueryCall
	MetricQueryQuickReplies
)
