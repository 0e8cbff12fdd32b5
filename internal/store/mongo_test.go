package store

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasfdcampos/gastro-leads/internal/domain"
)

// fakeCursor yields one decode result per document.
type fakeCursor struct {
	docs []error
	ids  []string
	pos  int
	err  error
}

func (c *fakeCursor) Next(context.Context) bool {
	c.pos++
	return c.pos <= len(c.docs)
}

func (c *fakeCursor) Decode(v any) error {
	if err := c.docs[c.pos-1]; err != nil {
		return err
	}
	v.(*domain.RunSummary).ID = c.ids[c.pos-1]
	return nil
}

func (c *fakeCursor) Err() error { return c.err }

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestDecodeRuns_SkipsAndLogsBadDocuments(t *testing.T) {
	buf := captureLog(t)
	cur := &fakeCursor{
		docs: []error{nil, errors.New("cannot decode string into int"), nil},
		ids:  []string{"r1", "", "r3"},
	}

	runs, err := decodeRuns(context.Background(), cur)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r1", runs[0].ID)
	assert.Equal(t, "r3", runs[1].ID)
	assert.Contains(t, buf.String(), "skipping undecodable run")
	assert.Contains(t, buf.String(), "cannot decode string into int")
}

func TestDecodeRuns_CursorError(t *testing.T) {
	cur := &fakeCursor{docs: []error{nil}, ids: []string{"r1"}, err: errors.New("cursor killed")}

	runs, err := decodeRuns(context.Background(), cur)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cursor killed")
	assert.Len(t, runs, 1)
}

func TestNewMongo_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s, err := NewMongo(ctx, "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=300&connectTimeoutMS=300", nil)
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "mongo ping")
}
