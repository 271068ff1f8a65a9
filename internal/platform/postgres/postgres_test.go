package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectRejectsEmptyDSN(t *testing.T) {
	_, err := Connect(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyDSN)
}

func TestConnectOptionalFallsBackWithoutDSN(t *testing.T) {
	db, cleanup := ConnectOptional(context.Background(), "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Nil(t, db)
	require.NotNil(t, cleanup)
	cleanup()
}
