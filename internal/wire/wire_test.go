// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/myco-sh/myco/internal/packet"
)

func TestDeriveIdentityIsDeterministicAndDistinct(t *testing.T) {
	require := require.New(t)
	a1 := DeriveIdentity(1)
	a2 := DeriveIdentity(1)
	b := DeriveIdentity(2)

	require.Equal(a1, a2)
	require.NotEqual(a1.Public, b.Public)
	require.NotEqual(a1.Private, b.Private)
}

func TestSharedKeyAgreement(t *testing.T) {
	require := require.New(t)
	a := DeriveIdentity(1)
	b := DeriveIdentity(2)

	kAB, err := SharedKey(a.Private, b.Public)
	require.NoError(err)
	kBA, err := SharedKey(b.Private, a.Public)
	require.NoError(err)
	require.Equal(kAB, kBA)
}

func sealedPacket(t *testing.T, key [32]byte, nonce byte) [packet.Size]byte {
	t.Helper()
	p := packet.New(packet.Deploy, 1, [32]byte{1})
	copy(p.Payload[:5], []byte("hello"))
	p.PayloadLen = 5
	p.Nonce[0] = nonce
	buf := p.Encode()
	require.NoError(t, Seal(&buf, key))
	return buf
}

func TestSealOpenRoundTrip(t *testing.T) {
	require := require.New(t)
	var key [32]byte
	key[0] = 42

	buf := sealedPacket(t, key, 1)
	var counters Counters
	ok, err := Open(&buf, key, &counters)
	require.NoError(err)
	require.True(ok)
	require.EqualValues(0, counters.MACFailures())

	p, err := packet.Decode(buf[:])
	require.NoError(err)
	require.Equal("hello", string(p.PayloadBytes()))
}

func TestOpenDetectsTamperedTag(t *testing.T) {
	require := require.New(t)
	var key [32]byte
	key[0] = 7

	buf := sealedPacket(t, key, 2)
	buf[54] ^= 0xFF // corrupt the auth tag

	var counters Counters
	ok, err := Open(&buf, key, &counters)
	require.NoError(err)
	require.False(ok)
	require.EqualValues(1, counters.MACFailures())
}

func TestOpenRejectsWrongKey(t *testing.T) {
	require := require.New(t)
	var key [32]byte
	key[0] = 9
	buf := sealedPacket(t, key, 3)

	var wrongKey [32]byte
	wrongKey[0] = 10
	var counters Counters
	ok, _ := Open(&buf, wrongKey, &counters)
	require.False(ok)
	require.EqualValues(1, counters.MACFailures())
}

// TestMACFailCounterScenario is spec.md scenario 5: with the open hook
// configured to fail for one in four packets, after 100 inbound
// packets the counter advances by exactly 25.
func TestMACFailCounterScenario(t *testing.T) {
	require := require.New(t)
	var key [32]byte
	key[0] = 1

	var counters Counters
	processed := 0
	for i := 0; i < 100; i++ {
		buf := sealedPacket(t, key, byte(i))
		if i%4 == 0 {
			buf[54] ^= 0xFF
		}
		ok, err := Open(&buf, key, &counters)
		require.NoError(err)
		if ok {
			processed++
		}
	}
	require.EqualValues(25, counters.MACFailures())
	require.Equal(75, processed)
}
