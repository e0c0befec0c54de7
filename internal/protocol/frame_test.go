package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_RoutesByType(t *testing.T) {
	raw := []byte(`{"type":"heartbeat","worker_id":"w1","load":0.5,"listen_port":9000}`)

	typ, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeHeartbeat, typ)

	var hb HeartbeatPayload
	require.NoError(t, json.Unmarshal(raw, &hb))
	assert.Equal(t, "w1", hb.WorkerID)
	assert.Equal(t, 0.5, hb.Load)
	assert.Equal(t, 9000, hb.ListenPort)
}

func TestDecode_MissingType(t *testing.T) {
	_, err := Decode([]byte(`{"worker_id":"w1"}`))
	assert.Error(t, err)
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecode_IgnoresUnknownFields(t *testing.T) {
	raw := []byte(`{"type":"submit_task","task":{"name":"n","data":"d"},"extra_field":"ignored"}`)

	typ, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeSubmitTask, typ)

	var p SubmitTaskPayload
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "n", p.Task.Name)
}

func TestSubmitTaskPayload_OptionalFields(t *testing.T) {
	raw := []byte(`{"type":"submit_task","task":{"name":"n","data":"d"}}`)

	var p SubmitTaskPayload
	require.NoError(t, json.Unmarshal(raw, &p))

	assert.Empty(t, p.Task.ID)
	assert.Equal(t, 0, p.Task.Priority)
}

func TestEncode_CheckStatusResponse(t *testing.T) {
	data, err := Encode(CheckStatusResponse{Completed: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"completed":true}`, string(data))
}
