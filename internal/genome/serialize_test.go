package genome

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerializeRoundTrip(t *testing.T) {
	g := seedGenome()
	g.GenerationID = 7
	g.GroupID = 2
	g.BestValidationMSE = 0.125
	g.InitialParameters = g.GetParameters()
	g.BestParameters = append([]float64(nil), g.InitialParameters...)
	g.TrainingIndices = []int32{1, 4, 9}
	g.Mins = map[string]float64{"temp": -1}
	g.Maxs = map[string]float64{"temp": 1}

	var buf bytes.Buffer
	require.NoError(t, g.Serialize(&buf))

	round, err := Deserialize(&buf, 99)
	require.NoError(t, err)

	require.True(t, g.StructurallyEqual(round))
	require.Equal(t, g.GenerationID, round.GenerationID)
	require.Equal(t, g.GroupID, round.GroupID)
	require.Equal(t, g.BestValidationMSE, round.BestValidationMSE)
	require.Equal(t, g.TrainingIndices, round.TrainingIndices)
	require.Equal(t, g.Mins, round.Mins)
	require.Equal(t, g.StructuralHash(), round.StructuralHash())
}

func TestDeserializeTruncatedStreamFails(t *testing.T) {
	g := seedGenome()
	var buf bytes.Buffer
	require.NoError(t, g.Serialize(&buf))
	truncated := bytes.NewReader(buf.Bytes()[:10])
	_, err := Deserialize(truncated, 1)
	require.Error(t, err)
}
