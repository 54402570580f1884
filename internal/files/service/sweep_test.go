package service

import (
	"context"
	"testing"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/laisky-chart-files/internal/files/model"
)

func TestSweepRemovesCorruptDescriptors(t *testing.T) {
	ctx := context.Background()
	svc, _, meta := newTestService(t)

	good, err := svc.Ingest(ctx, xmlUpload("user1", "a.xml", validXML))
	require.NoError(t, err)
	seedCorrupt(meta, "user1")
	seedCorrupt(meta, "user2")

	removed, err := svc.Sweep(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)

	n, err := meta.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := meta.FindByID(ctx, good.ID.Hex())
	require.NoError(t, err)
	require.NotNil(t, got)

	removed, err = svc.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestSweepReportsFailedDeletes(t *testing.T) {
	svc, _, meta := newTestService(t)
	seedCorrupt(meta, "user1")
	meta.deleteErr = errors.New("no primary")

	removed, err := svc.Sweep(context.Background())
	requireCode(t, err, model.ErrCodeMetadata)
	require.Zero(t, removed)
}
