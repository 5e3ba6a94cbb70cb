package logger_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/influxdata/influxdb-cluster/logger"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfig_New(t *testing.T) {
	for _, format := range []string{"json", "logfmt", "console"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			c := logger.NewConfig()
			c.Format = format
			log, err := c.New(&buf)
			require.NoError(t, err)

			log.Info("node joined", zap.Uint64("node_id", 7))
			require.Contains(t, buf.String(), "node joined")
			require.Contains(t, buf.String(), "7")
		})
	}
}

func TestConfig_New_AutoWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	c := logger.NewConfig()
	log, err := c.New(&buf)
	require.NoError(t, err)

	log.Info("hello")
	require.Contains(t, buf.String(), `msg=hello`)
}

func TestConfig_New_Level(t *testing.T) {
	var buf bytes.Buffer
	c := logger.NewConfig()
	c.Format = "logfmt"
	c.Level = zapcore.WarnLevel
	log, err := c.New(&buf)
	require.NoError(t, err)

	log.Info("dropped")
	require.Empty(t, buf.String())
}

func TestConfig_New_UnknownFormat(t *testing.T) {
	c := logger.NewConfig()
	c.Format = "xml"
	_, err := c.New(&bytes.Buffer{})
	require.Error(t, err)
}

func TestFromContext(t *testing.T) {
	require.Nil(t, logger.FromContext(context.Background()))

	log := zap.NewNop()
	ctx := logger.NewContextWithLogger(context.Background(), log)
	require.Same(t, log, logger.FromContext(ctx))

	fallback := zap.NewExample()
	require.Same(t, fallback, logger.FromContextOr(context.Background(), fallback))
	require.Same(t, log, logger.FromContextOr(ctx, fallback))
}
