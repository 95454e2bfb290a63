package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeResultPreservesNonASCII(t *testing.T) {
	result := ClassificationResult{
		Category:         "Atención Presencial en Oficinas",
		PromptTokens:     120,
		CompletionTokens: 6,
		TotalTokens:      126,
	}

	body, err := EncodeResult(result)
	require.NoError(t, err)

	assert.Contains(t, string(body), "Atención")
	assert.NotContains(t, string(body), `\u00f3`)

	var decoded ClassificationResult
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, result, decoded)
}

func TestEncodeResultLayout(t *testing.T) {
	body, err := EncodeResult(ClassificationResult{Category: "Plataformas Digitales", PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15})
	require.NoError(t, err)

	expected := "{\n" +
		"  \"categoria\": \"Plataformas Digitales\",\n" +
		"  \"prompt_tokens\": 12,\n" +
		"  \"completion_tokens\": 3,\n" +
		"  \"total_tokens\": 15\n" +
		"}"
	assert.Equal(t, expected, string(body))
}

func TestEncodeResultKeepsHTMLRunes(t *testing.T) {
	body, err := EncodeResult(ClassificationResult{Category: "Depósitos & Retiros <web>"})
	require.NoError(t, err)
	assert.Contains(t, string(body), "Depósitos & Retiros <web>")
}

func TestComplaintReplyFlattensResult(t *testing.T) {
	reply := ComplaintReply{
		ReqID:                "01J0000000000000000000000",
		ClassificationResult: ClassificationResult{Category: "Plataformas Digitales", TotalTokens: 15},
	}
	data, err := json.Marshal(reply)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "Plataformas Digitales", fields["categoria"])
	assert.EqualValues(t, 15, fields["total_tokens"])
	assert.NotContains(t, fields, "error")
}
