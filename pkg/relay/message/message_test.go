package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceTypeJSON(t *testing.T) {
	out, err := json.Marshal(SourceTypeFrontend)
	require.NoError(t, err)
	assert.Equal(t, `"FRONTEND"`, string(out))

	var st SourceType
	require.NoError(t, json.Unmarshal([]byte(`"DEVICE"`), &st))
	assert.Equal(t, SourceTypeDevice, st)

	require.NoError(t, json.Unmarshal([]byte(`"NOPE"`), &st))
	assert.Equal(t, SourceTypeSystem, st)
}

func TestSourceTypeFromString(t *testing.T) {
	st, err := SourceTypeFromString("FRONTEND")
	require.NoError(t, err)
	assert.Equal(t, SourceTypeFrontend, st)

	_, err = SourceTypeFromString("device")
	assert.Error(t, err)
}
