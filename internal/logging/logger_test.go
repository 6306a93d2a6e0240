package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, slog.LevelInfo).WithComponent("probe")
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	l.Info("capabilities checked",
		Address(addr),
		Code(4100),
		Err(errors.New("denied")),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "probe", entry["component"])
	assert.Equal(t, addr.Hex(), entry["address"])
	assert.Equal(t, float64(4100), entry["code"])
	assert.Equal(t, "denied", entry["error"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewTextLogger(&buf, ParseLevel("warn"))
	l.Info("hidden")
	assert.Empty(t, buf.String())
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Error("nothing happens", Err(nil))
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}
