package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	require.NoError(t, SetFormat("json"))
	SetLevel(logrus.InfoLevel)
	defer func() {
		require.NoError(t, SetFormat("text"))
	}()

	Component("aggregator").Info("formed quorum certificate")

	line := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "aggregator", line["component"])
	assert.Equal(t, "formed quorum certificate", line["msg"])
}

func TestSetFormatRejectsUnknown(t *testing.T) {
	assert.Error(t, SetFormat("xml"))
}
