package commitment_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/credra/credra/commitment"
)

func TestNamesInList(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"", false},
		{commitment.ShaBaselineID, true},
		{commitment.PedersenID, true},
		{commitment.AuditedID, true},
		{commitment.FischlinID, true},
		{commitment.BulletproofID, true},
		{"nonexistentschemename", false},
	}

	for _, tt := range tests {
		t.Run(tt.name+"IsInList", func(t *testing.T) {
			for _, v := range commitment.ListSchemes() {
				if tt.name == v {
					return
				}
			}
			require.False(t, tt.expected)
		})
	}
}

func TestFromNameRejectsUnknown(t *testing.T) {
	_, err := commitment.FromName("sha3-malleable")
	require.Error(t, err)
}

func TestRoundTripAllBackends(t *testing.T) {
	for _, name := range commitment.ListSchemes() {
		t.Run(name, func(t *testing.T) {
			scheme, err := commitment.FromName(name)
			require.NoError(t, err)

			stream := commitment.Stream(commitment.SeedFromUint64(99))
			c, o, err := scheme.Commit(12.5, stream)
			require.NoError(t, err)
			require.Equal(t, name, c.SchemeID)
			require.Equal(t, 12.5, o.Value)

			require.True(t, scheme.Verify(c, o))
		})
	}
}

func TestWrongValueRejectedAllBackends(t *testing.T) {
	for _, name := range commitment.ListSchemes() {
		t.Run(name, func(t *testing.T) {
			scheme, err := commitment.FromName(name)
			require.NoError(t, err)

			stream := commitment.Stream(commitment.SeedFromUint64(7))
			c, o, err := scheme.Commit(10.0, stream)
			require.NoError(t, err)

			forged := &commitment.Opening{Value: 9.0, Randomness: o.Randomness}
			require.False(t, scheme.Verify(c, forged))
		})
	}
}

func TestTamperedCommitmentRejectedAllBackends(t *testing.T) {
	for _, name := range commitment.ListSchemes() {
		t.Run(name, func(t *testing.T) {
			scheme, err := commitment.FromName(name)
			require.NoError(t, err)

			stream := commitment.Stream(commitment.SeedFromUint64(8))
			c, o, err := scheme.Commit(4.25, stream)
			require.NoError(t, err)

			tampered := &commitment.Commitment{SchemeID: c.SchemeID, Data: append([]byte(nil), c.Data...)}
			tampered.Data[0] ^= 0x01
			require.False(t, scheme.Verify(tampered, o))
		})
	}
}

func TestDistinctRandomnessHidesEqualBids(t *testing.T) {
	for _, name := range commitment.ListSchemes() {
		t.Run(name, func(t *testing.T) {
			scheme, err := commitment.FromName(name)
			require.NoError(t, err)

			stream := commitment.Stream(commitment.SeedFromUint64(21))
			c1, _, err := scheme.Commit(5.0, stream)
			require.NoError(t, err)
			c2, _, err := scheme.Commit(5.0, stream)
			require.NoError(t, err)
			require.False(t, c1.Equal(c2))
		})
	}
}

func TestSeededStreamsReproduceCommitments(t *testing.T) {
	for _, name := range commitment.ListSchemes() {
		t.Run(name, func(t *testing.T) {
			first, err := commitment.FromName(name)
			require.NoError(t, err)
			second, err := commitment.FromName(name)
			require.NoError(t, err)

			c1, o1, err := first.Commit(3.75, commitment.Stream(commitment.SeedFromUint64(1234)))
			require.NoError(t, err)
			c2, o2, err := second.Commit(3.75, commitment.Stream(commitment.SeedFromUint64(1234)))
			require.NoError(t, err)

			require.True(t, c1.Equal(c2))
			require.Equal(t, o1.Randomness, o2.Randomness)
		})
	}
}

func TestProofsAreNotTransferable(t *testing.T) {
	scheme := commitment.NewFischlin()
	stream := commitment.Stream(commitment.SeedFromUint64(5))

	c1, o1, err := scheme.Commit(10.0, stream)
	require.NoError(t, err)
	c2, _, err := scheme.Commit(10.0, stream)
	require.NoError(t, err)

	// Grafting the second commitment's proof section onto the first point
	// must not produce an acceptable commitment.
	spliced := append([]byte(nil), c1.Data...)
	copy(spliced[len(spliced)/2:], c2.Data[len(c2.Data)/2:])
	require.False(t, scheme.Verify(&commitment.Commitment{SchemeID: c1.SchemeID, Data: spliced}, o1))
}

func TestFischlinOverBLSGroup(t *testing.T) {
	scheme := commitment.NewFischlinOnBLS()
	stream := commitment.Stream(commitment.SeedFromUint64(77))

	c, o, err := scheme.Commit(42.0, stream)
	require.NoError(t, err)
	require.True(t, scheme.Verify(c, o))

	forged := &commitment.Opening{Value: 41.0, Randomness: o.Randomness}
	require.False(t, scheme.Verify(c, forged))

	// Commitments over different groups have incompatible encodings.
	ed := commitment.NewFischlin()
	require.False(t, ed.Verify(c, o))
}

func TestBulletproofRange(t *testing.T) {
	scheme := commitment.NewBulletproof()
	stream := commitment.Stream(commitment.SeedFromUint64(3))

	_, _, err := scheme.Commit(-1.0, stream)
	require.ErrorIs(t, err, commitment.ErrOutOfRange)

	_, _, err = scheme.Commit(math.NaN(), stream)
	require.ErrorIs(t, err, commitment.ErrOutOfRange)

	_, _, err = scheme.Commit(math.Inf(1), stream)
	require.ErrorIs(t, err, commitment.ErrOutOfRange)

	_, _, err = scheme.Commit(scheme.MaxValue()+1, stream)
	require.ErrorIs(t, err, commitment.ErrOutOfRange)

	c, o, err := scheme.Commit(scheme.MaxValue(), stream)
	require.NoError(t, err)
	require.True(t, scheme.Verify(c, o))

	c, o, err = scheme.Commit(0, stream)
	require.NoError(t, err)
	require.True(t, scheme.Verify(c, o))
}

func TestVerifyToleratesGarbage(t *testing.T) {
	for _, name := range commitment.ListSchemes() {
		scheme, err := commitment.FromName(name)
		require.NoError(t, err)

		require.False(t, scheme.Verify(nil, nil))
		require.False(t, scheme.Verify(&commitment.Commitment{SchemeID: name, Data: []byte{1, 2, 3}},
			&commitment.Opening{Value: 1, Randomness: []byte{4, 5}}))
	}
}
