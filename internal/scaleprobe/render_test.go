package scaleprobe

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memebattle/scaleprobe/internal/broker"
	"github.com/memebattle/scaleprobe/internal/common/pointer"
	"github.com/memebattle/scaleprobe/internal/fleet"
	"github.com/memebattle/scaleprobe/internal/monitor"
)

func TestJoinHistory(t *testing.T) {
	assert.Equal(t, "", joinHistory(nil))
	assert.Equal(t, "3", joinHistory([]uint64{3}))
	assert.Equal(t, "1 -> 2 -> 4", joinHistory([]uint64{1, 2, 4}))
}

func TestOptional(t *testing.T) {
	assert.Equal(t, notAvailable, optional(nil))
	assert.Equal(t, "0", optional(pointer.Pointer(uint64(0))))
	assert.Equal(t, notAvailable, optionalTime(nil))
}

func TestTextRenderer_ClearsScreenEveryFiveSamples(t *testing.T) {
	out := &bytes.Buffer{}
	r := newRenderer(OutputText, out, "MEMES")
	sample := monitor.Sample{Time: time.Now(), PodHistory: []uint64{1}}

	for i := 0; i < 11; i++ {
		require.NoError(t, r.Sample(sample))
	}
	assert.Equal(t, 3, strings.Count(out.String(), clearScreen))
}

func TestTextRenderer_UnknownValues(t *testing.T) {
	out := &bytes.Buffer{}
	r := newRenderer(OutputText, out, "MEMES")
	require.NoError(t, r.Sample(monitor.Sample{
		Time:       time.Now(),
		Stream:     broker.StreamStats{},
		KedaActive: fleet.ConditionUnknown,
		PodHistory: []uint64{0},
		Errors:     []string{"stream info failed: timeout"},
	}))

	output := out.String()
	assert.Regexp(t, `Messages in queue:\s+N/A`, output)
	assert.Regexp(t, `KEDA active:\s+Unknown`, output)
	assert.Contains(t, output, "stream info failed: timeout")
	assert.NotContains(t, output, "Message count:")
}

func TestYamlRenderer_SeparatesDocuments(t *testing.T) {
	out := &bytes.Buffer{}
	r := newRenderer(OutputYaml, out, "MEMES")
	sample := monitor.Sample{Fleet: fleet.State{PodCount: 2}}

	require.NoError(t, r.Sample(sample))
	require.NoError(t, r.Sample(sample))
	assert.Equal(t, 2, strings.Count(out.String(), "---\n"))
	assert.Contains(t, out.String(), "podCount: 2")
}
