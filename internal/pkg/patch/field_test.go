package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type productPatch struct {
	Title Field[string] `json:"title"`
	Stock Field[int]    `json:"stock"`
	Note  Field[string] `json:"note"`
}

func TestField_DistinguishesAbsentNullAndValue(t *testing.T) {
	var p productPatch
	require.NoError(t, json.Unmarshal([]byte(`{"title":"Mug","stock":null}`), &p))

	assert.True(t, p.Title.Set)
	assert.False(t, p.Title.Null)
	assert.Equal(t, "Mug", p.Title.Value)

	assert.True(t, p.Stock.Set)
	assert.True(t, p.Stock.Null)
	assert.Nil(t, p.Stock.Ptr())

	assert.False(t, p.Note.Set)
}

func TestField_ApplyTo(t *testing.T) {
	five := 5
	dst := &five

	Field[int]{}.ApplyTo(&dst)
	require.NotNil(t, dst)
	assert.Equal(t, 5, *dst)

	Of(7).ApplyTo(&dst)
	require.NotNil(t, dst)
	assert.Equal(t, 7, *dst)

	Null[int]().ApplyTo(&dst)
	assert.Nil(t, dst)
}

func TestField_RejectsWrongType(t *testing.T) {
	var p productPatch
	assert.Error(t, json.Unmarshal([]byte(`{"stock":"many"}`), &p))
}
