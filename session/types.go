// Copyright (C) 2025 sage-x-project
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

package session

import "github.com/sage-x-project/nearbylink/proto"

// Phase is the session state machine's current position. Transitions are
// monotonic: forward only, terminating in Terminated.
type Phase int

const (
	PhaseInitial Phase = iota
	PhaseSentClientInit
	PhaseSentClientFinish
	PhaseEncrypted
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseSentClientInit:
		return "sent_client_init"
	case PhaseSentClientFinish:
		return "sent_client_finish"
	case PhaseEncrypted:
		return "encrypted"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// State is the per-connection aggregate's externally observable record.
// The key material itself lives in the ukey2.Handshake and
// envelope.Envelope the Session owns; State tracks only what's needed for
// phase dispatch and status reporting.
type State struct {
	ID              string
	Phase           Phase
	EndpointID      [4]byte
	PinCode         string
	EncryptionReady bool
}

// DeviceType tags the local device kind advertised in the ConnectionRequest.
type DeviceType int

const (
	DeviceTypeUnknown DeviceType = iota
	DeviceTypePhone
	DeviceTypeLaptop
	DeviceTypeTablet
)

// LocalEndpoint describes this peer to the remote side: its 4-byte
// endpoint id, display name, and device type, serialized into the
// ConnectionRequest's endpoint_name/endpoint_info fields.
type LocalEndpoint struct {
	ID         [4]byte
	Name       string
	DeviceType DeviceType
	// OSInfo is advertised on the ConnectionResponse once encrypted;
	// defaults to proto.OSLinux if left zero-valued.
	OSInfo proto.OSType
}

// Status summarizes a Manager's registry for reporting.
type Status struct {
	TotalSessions  int `json:"totalSessions"`
	ActiveSessions int `json:"activeSessions"`
}
