package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlexibleIDUnmarshal(t *testing.T) {
	assert := require.New(t)

	var edge RawMapEdge
	err := json.Unmarshal([]byte(`{"id": 7, "source_node_id": 1, "target_node_id": "2", "label": null}`), &edge)
	assert.NoError(err)
	assert.Equal(FlexibleID("7"), edge.ID)
	assert.Equal(FlexibleID("1"), edge.SourceNodeID)
	assert.Equal(FlexibleID("2"), edge.TargetNodeID)
	assert.Nil(edge.Label)

	n, err := edge.SourceNodeID.Int()
	assert.NoError(err)
	assert.Equal(1, n)

	var node RawGraphNode
	assert.NoError(json.Unmarshal([]byte(`{"id": "entity:Samsung", "label": "Samsung", "type": "entity"}`), &node))
	assert.Equal("entity:Samsung", node.ID.String())

	var bad RawGraphNode
	assert.Error(json.Unmarshal([]byte(`{"id": {"nested": true}}`), &bad))
}
