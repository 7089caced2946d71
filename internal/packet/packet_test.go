// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package packet

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestPacketSizeIsExactly1024(t *testing.T) {
	require.Equal(t, 1024, Size)
	require.Equal(t, uintptr(Size), unsafe.Sizeof(Packet{}))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	require := require.New(t)

	var sender [32]byte
	copy(sender[:], "sender-pubkey-0123456789abcdef0")

	p := New(Deploy, 7, sender)
	p.Zone = 3
	p.RevocationBlk = 0xAABBCCDD
	p.SetCompressed(true)
	p.PayloadLen = 10
	copy(p.Payload[:10], []byte("helloworld"))

	buf := p.Encode()
	got, err := Decode(buf[:])
	require.NoError(err)

	require.Equal(p.Magic, got.Magic)
	require.Equal(p.Version, got.Version)
	require.Equal(p.MsgType, got.MsgType)
	require.Equal(p.NodeID, got.NodeID)
	require.Equal(p.Zone, got.Zone)
	require.Equal(p.Flags, got.Flags)
	require.Equal(p.RevocationBlk, got.RevocationBlk)
	require.Equal(p.PayloadLen, got.PayloadLen)
	require.Equal(p.SenderPubKey, got.SenderPubKey)
	require.True(got.IsCompressed())
	require.Equal("helloworld", string(got.PayloadBytes()))
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode(make([]byte, Size-1))
	require.ErrorIs(t, err, ErrTruncated)
}

func TestEffectivePayloadLenClampsToPayloadSize(t *testing.T) {
	require := require.New(t)
	p := New(Sync, 1, [32]byte{})
	p.PayloadLen = 60000
	require.Equal(PayloadSize, p.EffectivePayloadLen())
	require.Len(p.PayloadBytes(), PayloadSize)
}

func TestMsgTypeString(t *testing.T) {
	require := require.New(t)
	require.Equal("Deploy", Deploy.String())
	require.Equal("Sync", Sync.String())
	require.Equal("Request", Request.String())
	require.Equal("Control", Control.String())
	require.Equal("Unknown", Type(99).String())
}

func TestMACRegionExcludesOnlyAuthTag(t *testing.T) {
	require := require.New(t)
	var sender [32]byte
	p := New(Deploy, 1, sender)
	p.AuthTag = [12]byte{1, 2, 3}
	buf := p.Encode()
	region := MACRegion(buf[:])
	require.Len(region, Size-12)

	// Mutating AuthTag alone must not change the MAC region.
	p2 := p
	p2.AuthTag = [12]byte{9, 9, 9}
	buf2 := p2.Encode()
	require.Equal(region, MACRegion(buf2[:]))
}
