package zlog_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/riverforge/flowpipe/zlog"
	"github.com/stretchr/testify/require"
)

func TestWithZlog_writesStructuredLine(t *testing.T) {
	var buf bytes.Buffer

	logger := zlog.L.New(
		zlog.WithZlog(zlog.WithWriter(&buf)),
		zlog.L.WithLevel(logiface.LevelDebug),
	)

	logger.Info().Str(`stage`, `filter`).Int(`bundles`, 3).Log(`processed batch`)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded))
	require.Equal(t, `filter`, decoded[`stage`])
	require.Equal(t, float64(3), decoded[`bundles`])
	require.Equal(t, `processed batch`, decoded[`msg`])
	require.Equal(t, `info`, decoded[`level`])
}

func TestWithZlog_disabledLevelSkipsWrite(t *testing.T) {
	var buf bytes.Buffer

	logger := zlog.L.New(
		zlog.WithZlog(zlog.WithWriter(&buf)),
		zlog.L.WithLevel(logiface.LevelWarning),
	)

	logger.Debug().Str(`k`, `v`).Log(`should not appear`)

	require.Zero(t, buf.Len())
}
