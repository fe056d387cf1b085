package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexuscred/pkg/platform/sentinel"
)

func TestBatchCommitment_MarkAnchoredOnce(t *testing.T) {
	b := &BatchCommitment{BatchID: "bat_1", Status: BatchCreated}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, b.MarkAnchored("0xabc", at))
	assert.True(t, b.IsAnchored())
	assert.Equal(t, "0xabc", b.LedgerTxRef)
	require.NotNil(t, b.AnchoredAt)
	assert.Equal(t, at, *b.AnchoredAt)

	err := b.MarkAnchored("0xdef", at.Add(time.Hour))
	require.ErrorIs(t, err, sentinel.ErrInvalidState)
	assert.Equal(t, "0xabc", b.LedgerTxRef, "anchoring metadata is immutable once set")
}

func TestCredentialBatch_Leaves(t *testing.T) {
	batch := CredentialBatch{Credentials: []RawCredential{
		{StudentID: "alice", Fields: []CredentialField{{Name: "gpa", Value: "3.8", Hashable: true}}},
		{StudentID: "bob", Fields: []CredentialField{{Name: "gpa", Value: "3.8", Hashable: true}}},
	}}
	leaves := batch.Leaves()
	require.Len(t, leaves, 2)
	assert.Equal(t, leaves[0], leaves[1], "identical hashable values share a leaf")
}
