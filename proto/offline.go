package proto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// V1FrameType tags which oneof field of a V1Frame is populated.
type V1FrameType int32

const (
	V1FrameUnknownDoNotUse V1FrameType = 0
	V1FrameConnectionRequest  V1FrameType = 1
	V1FrameConnectionResponse V1FrameType = 2
	V1FramePayloadTransfer    V1FrameType = 3
	V1FrameDisconnection      V1FrameType = 4
	V1FrameKeepAlive          V1FrameType = 5
)

// Medium is an advertised connectivity medium on a ConnectionRequest.
type Medium int32

const (
	MediumUnknown Medium = 0
	MediumWifiLan Medium = 1
)

// ConnectionResponseStatus is ConnectionResponseFrame.response.
type ConnectionResponseStatus int32

const (
	ConnectionResponseUnknown ConnectionResponseStatus = 0
	ConnectionResponseAccept  ConnectionResponseStatus = 1
	ConnectionResponseReject  ConnectionResponseStatus = 2
)

// OSType is OsInfo.type.
type OSType int32

const (
	OSUnknown OSType = 0
	OSLinux   OSType = 1
	OSWindows OSType = 2
	OSMacOS   OSType = 3
	OSAndroid OSType = 4
)

// PayloadTransferPacketType is PayloadTransferFrame.packet_type.
type PayloadTransferPacketType int32

const (
	PayloadTransferPacketUnknown PayloadTransferPacketType = 0
	PayloadTransferPacketData    PayloadTransferPacketType = 1
)

// PayloadType is PayloadHeader.type.
type PayloadType int32

const (
	PayloadTypeUnknown PayloadType = 0
	PayloadTypeBytes   PayloadType = 1
)

// RemoteDeviceInfo is serialized into ConnectionRequestFrame.EndpointInfo;
// it is not a top-level wire frame, just an embedded descriptor of the
// local device.
type RemoteDeviceInfo struct {
	Name       string
	DeviceType int32
}

func (d *RemoteDeviceInfo) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(d.Name))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(d.DeviceType)))
	return b
}

func (d *RemoteDeviceInfo) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("remotedeviceinfo: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("remotedeviceinfo: bad name: %w", protowire.ParseError(n))
			}
			d.Name = string(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("remotedeviceinfo: bad device_type: %w", protowire.ParseError(n))
			}
			d.DeviceType = int32(uint32(v))
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("remotedeviceinfo: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// ConnectionRequestFrame announces the initiator to the peer.
type ConnectionRequestFrame struct {
	EndpointID   []byte
	EndpointName string
	EndpointInfo []byte
	Mediums      []Medium
}

func (f *ConnectionRequestFrame) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, f.EndpointID)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(f.EndpointName))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, f.EndpointInfo)
	for _, m := range f.Mediums {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m))
	}
	return b
}

func (f *ConnectionRequestFrame) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("connectionrequest: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("connectionrequest: bad endpoint_id: %w", protowire.ParseError(n))
			}
			f.EndpointID = append([]byte{}, v...)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("connectionrequest: bad endpoint_name: %w", protowire.ParseError(n))
			}
			f.EndpointName = string(v)
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("connectionrequest: bad endpoint_info: %w", protowire.ParseError(n))
			}
			f.EndpointInfo = append([]byte{}, v...)
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("connectionrequest: bad medium: %w", protowire.ParseError(n))
			}
			f.Mediums = append(f.Mediums, Medium(v))
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("connectionrequest: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// OsInfo tags the initiator's operating system on a ConnectionResponse.
type OsInfo struct {
	Type OSType
}

func (o *OsInfo) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(o.Type))
	return b
}

func (o *OsInfo) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("osinfo: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("osinfo: bad type: %w", protowire.ParseError(n))
			}
			o.Type = OSType(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("osinfo: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// ConnectionResponseFrame accepts or rejects the request.
type ConnectionResponseFrame struct {
	Response ConnectionResponseStatus
	OsInfo   *OsInfo
}

func (f *ConnectionResponseFrame) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Response))
	if f.OsInfo != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, f.OsInfo.Marshal())
	}
	return b
}

func (f *ConnectionResponseFrame) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("connectionresponse: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("connectionresponse: bad response: %w", protowire.ParseError(n))
			}
			f.Response = ConnectionResponseStatus(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("connectionresponse: bad os_info: %w", protowire.ParseError(n))
			}
			o := &OsInfo{}
			if err := o.Unmarshal(v); err != nil {
				return err
			}
			f.OsInfo = o
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("connectionresponse: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// DisconnectionFrame carries no payload; its presence as the populated
// oneof field is the entire signal.
type DisconnectionFrame struct{}

func (f *DisconnectionFrame) Marshal() []byte { return nil }

func (f *DisconnectionFrame) Unmarshal(data []byte) error { return nil }

// KeepAliveFrame pings or acks liveness.
type KeepAliveFrame struct {
	Ack bool
}

func (f *KeepAliveFrame) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	v := uint64(0)
	if f.Ack {
		v = 1
	}
	b = protowire.AppendVarint(b, v)
	return b
}

func (f *KeepAliveFrame) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("keepalive: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("keepalive: bad ack: %w", protowire.ParseError(n))
			}
			f.Ack = v != 0
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("keepalive: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// PayloadHeader describes one payload transfer.
type PayloadHeader struct {
	ID          int64
	Type        PayloadType
	TotalSize   int64
	IsSensitive bool
}

func (h *PayloadHeader) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.ID))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.Type))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.TotalSize))
	sensitive := uint64(0)
	if h.IsSensitive {
		sensitive = 1
	}
	b = protowire.AppendTag(b, 4, protowire.VarintType)
	b = protowire.AppendVarint(b, sensitive)
	return b
}

func (h *PayloadHeader) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("payloadheader: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("payloadheader: bad id: %w", protowire.ParseError(n))
			}
			h.ID = int64(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("payloadheader: bad type: %w", protowire.ParseError(n))
			}
			h.Type = PayloadType(v)
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("payloadheader: bad total_size: %w", protowire.ParseError(n))
			}
			h.TotalSize = int64(v)
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("payloadheader: bad is_sensitive: %w", protowire.ParseError(n))
			}
			h.IsSensitive = v != 0
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("payloadheader: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// PayloadChunk is one slice of a payload transfer; flags==1 marks the
// last (terminator) chunk.
type PayloadChunk struct {
	Offset int64
	Flags  int32
	Body   []byte
}

func (c *PayloadChunk) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Offset))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(c.Flags)))
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, c.Body)
	return b
}

func (c *PayloadChunk) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("payloadchunk: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("payloadchunk: bad offset: %w", protowire.ParseError(n))
			}
			c.Offset = int64(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("payloadchunk: bad flags: %w", protowire.ParseError(n))
			}
			c.Flags = int32(uint32(v))
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("payloadchunk: bad body: %w", protowire.ParseError(n))
			}
			c.Body = append([]byte{}, v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("payloadchunk: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// PayloadTransferFrame carries one chunk of an application payload.
type PayloadTransferFrame struct {
	PacketType    PayloadTransferPacketType
	PayloadHeader *PayloadHeader
	PayloadChunk  *PayloadChunk
}

func (f *PayloadTransferFrame) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.PacketType))
	if f.PayloadHeader != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, f.PayloadHeader.Marshal())
	}
	if f.PayloadChunk != nil {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, f.PayloadChunk.Marshal())
	}
	return b
}

func (f *PayloadTransferFrame) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("payloadtransfer: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("payloadtransfer: bad packet_type: %w", protowire.ParseError(n))
			}
			f.PacketType = PayloadTransferPacketType(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("payloadtransfer: bad payload_header: %w", protowire.ParseError(n))
			}
			h := &PayloadHeader{}
			if err := h.Unmarshal(v); err != nil {
				return err
			}
			f.PayloadHeader = h
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("payloadtransfer: bad payload_chunk: %w", protowire.ParseError(n))
			}
			c := &PayloadChunk{}
			if err := c.Unmarshal(v); err != nil {
				return err
			}
			f.PayloadChunk = c
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("payloadtransfer: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// V1Frame is the versioned inner frame of an OfflineFrame; exactly one
// of the pointer fields matching Type is populated.
type V1Frame struct {
	Type               V1FrameType
	ConnectionRequest  *ConnectionRequestFrame
	ConnectionResponse *ConnectionResponseFrame
	PayloadTransfer    *PayloadTransferFrame
	Disconnection      *DisconnectionFrame
	KeepAlive          *KeepAliveFrame
}

func (f *V1Frame) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Type))
	if f.ConnectionRequest != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, f.ConnectionRequest.Marshal())
	}
	if f.ConnectionResponse != nil {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, f.ConnectionResponse.Marshal())
	}
	if f.PayloadTransfer != nil {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, f.PayloadTransfer.Marshal())
	}
	if f.Disconnection != nil {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Disconnection.Marshal())
	}
	if f.KeepAlive != nil {
		b = protowire.AppendTag(b, 6, protowire.BytesType)
		b = protowire.AppendBytes(b, f.KeepAlive.Marshal())
	}
	return b
}

func (f *V1Frame) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("v1frame: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("v1frame: bad type: %w", protowire.ParseError(n))
			}
			f.Type = V1FrameType(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("v1frame: bad connection_request: %w", protowire.ParseError(n))
			}
			cr := &ConnectionRequestFrame{}
			if err := cr.Unmarshal(v); err != nil {
				return err
			}
			f.ConnectionRequest = cr
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("v1frame: bad connection_response: %w", protowire.ParseError(n))
			}
			cr := &ConnectionResponseFrame{}
			if err := cr.Unmarshal(v); err != nil {
				return err
			}
			f.ConnectionResponse = cr
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("v1frame: bad payload_transfer: %w", protowire.ParseError(n))
			}
			pt := &PayloadTransferFrame{}
			if err := pt.Unmarshal(v); err != nil {
				return err
			}
			f.PayloadTransfer = pt
			data = data[n:]
		case 5:
			_, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("v1frame: bad disconnection: %w", protowire.ParseError(n))
			}
			f.Disconnection = &DisconnectionFrame{}
			data = data[n:]
		case 6:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("v1frame: bad keep_alive: %w", protowire.ParseError(n))
			}
			ka := &KeepAliveFrame{}
			if err := ka.Unmarshal(v); err != nil {
				return err
			}
			f.KeepAlive = ka
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("v1frame: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

// OfflineFrame is the top-level application message carried inside a
// DeviceToDeviceMessage once the session is Encrypted (ConnectionRequest
// and ClientInit/ClientFinish frames travel outside this wrapper, in
// plaintext, per the handshake).
type OfflineFrame struct {
	Version int32
	V1      *V1Frame
}

func (f *OfflineFrame) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Version))
	if f.V1 != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, f.V1.Marshal())
	}
	return b
}

func (f *OfflineFrame) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("offlineframe: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("offlineframe: bad version: %w", protowire.ParseError(n))
			}
			f.Version = int32(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("offlineframe: bad v1: %w", protowire.ParseError(n))
			}
			v1 := &V1Frame{}
			if err := v1.Unmarshal(v); err != nil {
				return err
			}
			f.V1 = v1
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("offlineframe: bad field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}
