package structured

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/charforge/character"
	"github.com/BaSui01/charforge/types"
)

func TestParseGenerationResult_Valid(t *testing.T) {
	res := ParseGenerationResult(`{"description":"불꽃을 다루는 마법사","jobClass":"화염의 현자","stats":{"STR":150,"INT":90,"CON":10,"WIS":5}}`)
	require.True(t, res.IsValid())
	require.NoError(t, res.Err())
	assert.Equal(t, "화염의 현자", res.Value.JobClass)
	assert.Equal(t, character.AttributeSet{STR: 150, INT: 90, CON: 10, WIS: 5}, res.Value.Stats)
}

func TestParseGenerationResult_MissingDescriptionTolerated(t *testing.T) {
	res := ParseGenerationResult(`{"jobClass":"전사","stats":{"STR":1,"INT":2,"CON":3,"WIS":4}}`)
	require.True(t, res.IsValid())
	assert.Empty(t, res.Value.Description)
}

func TestParseGenerationResult_FloatStatsTruncated(t *testing.T) {
	res := ParseGenerationResult(`{"jobClass":"전사","stats":{"STR":12.9,"INT":2,"CON":3,"WIS":4}}`)
	require.True(t, res.IsValid())
	assert.Equal(t, 12, res.Value.Stats.STR)
}

func TestParseGenerationResult_Failures(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		path    string
	}{
		{"missing jobClass", `{"stats":{"STR":1,"INT":2,"CON":3,"WIS":4}}`, "jobClass"},
		{"null jobClass", `{"jobClass":null,"stats":{"STR":1,"INT":2,"CON":3,"WIS":4}}`, "jobClass"},
		{"empty jobClass", `{"jobClass":"  ","stats":{"STR":1,"INT":2,"CON":3,"WIS":4}}`, "jobClass"},
		{"missing stats", `{"jobClass":"전사"}`, "stats"},
		{"stats not object", `{"jobClass":"전사","stats":[1,2,3,4]}`, "stats"},
		{"missing WIS", `{"jobClass":"전사","stats":{"STR":1,"INT":2,"CON":3}}`, "stats.WIS"},
		{"string stat", `{"jobClass":"전사","stats":{"STR":"high","INT":2,"CON":3,"WIS":4}}`, "stats.STR"},
		{"invalid json", `{"jobClass":`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseGenerationResult(tt.payload)
			assert.False(t, res.IsValid())
			assert.Nil(t, res.Value)
			require.NotEmpty(t, res.Errors)

			paths := make([]string, 0, len(res.Errors))
			for _, e := range res.Errors {
				paths = append(paths, e.Path)
			}
			assert.Contains(t, paths, tt.path)
			assert.True(t, types.IsCode(res.Err(), types.ErrParseFailure))
		})
	}
}

func TestDecodeGenerationResult(t *testing.T) {
	raw := "Sure! Here is the character:\n" +
		`{"description":"d","jobClass":"그림자 무용가","stats":{"STR":10,"INT":11,"CON":12,"WIS":13}}` +
		"\nLet me know if you need changes."

	got, err := DecodeGenerationResult(raw)
	require.NoError(t, err)
	assert.Equal(t, "그림자 무용가", got.JobClass)

	_, err = DecodeGenerationResult("I cannot help with that.")
	assert.True(t, types.IsCode(err, types.ErrExtractionFailure))

	_, err = DecodeGenerationResult(`{"description":"only"}`)
	assert.True(t, types.IsCode(err, types.ErrParseFailure))
}
