package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "only spaces", input: "   ", expected: nil},
		{name: "comma only", input: ",", expected: nil},
		{name: "single value", input: "IBOV", expected: []string{"IBOV"}},
		{name: "varied spacing", input: "IBOV,  BTC , SELIC", expected: []string{"IBOV", "BTC", "SELIC"}},
		{name: "trailing comma", input: "IBOV,", expected: []string{"IBOV"}},
		{name: "empty middle", input: "IBOV,,BTC", expected: []string{"IBOV", "BTC"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCSV(tt.input))
		})
	}
}

func TestParsePairs(t *testing.T) {
	pairs, err := ParsePairs(" IBOV = 0.5 ,SELIC=0.5,")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"IBOV": "0.5", "SELIC": "0.5"}, pairs)

	pairs, err = ParsePairs("")
	require.NoError(t, err)
	assert.Nil(t, pairs)

	_, err = ParsePairs("IBOV")
	assert.ErrorContains(t, err, "expected KEY=value")

	_, err = ParsePairs("=1")
	assert.ErrorContains(t, err, "expected KEY=value")

	_, err = ParsePairs("A=1,A=2")
	assert.ErrorContains(t, err, "duplicate key A")
}

func TestOperationTimer(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	stop := OperationTimer("statistics_build", log)
	time.Sleep(time.Millisecond)
	d := stop()

	assert.GreaterOrEqual(t, d, time.Millisecond)
	assert.Contains(t, buf.String(), `"operation":"statistics_build"`)
	assert.NotContains(t, buf.String(), "Slow operation")
}

func TestMeasureDBQuery(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	MeasureDBQuery("get_prices", log)(12)

	assert.Contains(t, buf.String(), `"query":"get_prices"`)
	assert.Contains(t, buf.String(), `"rows":12`)
}
