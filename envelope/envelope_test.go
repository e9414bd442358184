package envelope

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/nearbylink/cryptocore"
	"github.com/sage-x-project/nearbylink/proto"
)

func testKeys() *cryptocore.SessionKeys {
	mk := func(b byte) []byte {
		k := make([]byte, 32)
		for i := range k {
			k[i] = b
		}
		return k
	}
	return &cryptocore.SessionKeys{
		EncryptKey:  mk(1),
		SendHMACKey: mk(2),
		DecryptKey:  mk(1),
		RecvHMACKey: mk(2),
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	keys := testKeys()
	sender := New(keys)
	receiver := New(keys)

	frame := &proto.OfflineFrame{
		Version: 1,
		V1:      &proto.V1Frame{Type: proto.V1FrameKeepAlive, KeepAlive: &proto.KeepAliveFrame{Ack: true}},
	}

	wire, err := sender.EncryptFrame(frame)
	require.NoError(t, err)

	got, err := receiver.DecryptFrame(wire)
	require.NoError(t, err)
	require.Equal(t, frame.Version, got.Version)
	require.Equal(t, frame.V1.Type, got.V1.Type)
	require.True(t, got.V1.KeepAlive.Ack)
	require.EqualValues(t, 1, sender.ServerSeq())
	require.EqualValues(t, 1, receiver.ClientSeq())
}

func TestEnvelopeSequenceIncrementsAcrossMessages(t *testing.T) {
	keys := testKeys()
	sender := New(keys)
	receiver := New(keys)

	frame := &proto.OfflineFrame{Version: 1, V1: &proto.V1Frame{Type: proto.V1FrameKeepAlive, KeepAlive: &proto.KeepAliveFrame{Ack: false}}}

	for i := 1; i <= 3; i++ {
		wire, err := sender.EncryptFrame(frame)
		require.NoError(t, err)
		_, err = receiver.DecryptFrame(wire)
		require.NoError(t, err)
		require.EqualValues(t, i, receiver.ClientSeq())
	}
}

func TestEnvelopeRejectsBadSignature(t *testing.T) {
	keys := testKeys()
	sender := New(keys)
	badKeys := testKeys()
	badKeys.RecvHMACKey = make([]byte, 32) // all zero, mismatched
	receiver := New(badKeys)

	frame := &proto.OfflineFrame{Version: 1, V1: &proto.V1Frame{Type: proto.V1FrameKeepAlive, KeepAlive: &proto.KeepAliveFrame{Ack: true}}}
	wire, err := sender.EncryptFrame(frame)
	require.NoError(t, err)

	_, err = receiver.DecryptFrame(wire)
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestEnvelopeRejectsOutOfOrderSequence(t *testing.T) {
	keys := testKeys()
	sender := New(keys)
	receiver := New(keys)

	frame := &proto.OfflineFrame{Version: 1, V1: &proto.V1Frame{Type: proto.V1FrameKeepAlive, KeepAlive: &proto.KeepAliveFrame{Ack: true}}}

	wire1, err := sender.EncryptFrame(frame)
	require.NoError(t, err)
	wire2, err := sender.EncryptFrame(frame)
	require.NoError(t, err)

	// Deliver wire2 first: receiver expects sequence 1 but gets 2.
	_, err = receiver.DecryptFrame(wire2)
	require.ErrorIs(t, err, ErrSequenceMismatch)

	// wire1 would now also mismatch since clientSeq already advanced.
	_, err = receiver.DecryptFrame(wire1)
	require.ErrorIs(t, err, ErrSequenceMismatch)
}

func TestEnvelopeRejectsMalformedSecureMessage(t *testing.T) {
	keys := testKeys()
	receiver := New(keys)
	_, err := receiver.DecryptFrame([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
}
