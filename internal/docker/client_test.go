package docker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainBuildOutput_ForwardsProgress(t *testing.T) {
	stream := `{"stream":"Step 1/3 : FROM python:3.11-slim\n"}
{"stream":" ---> 2f1b5f2d\n"}
{"stream":"Successfully built 2f1b5f2d\n"}
`
	var out strings.Builder
	err := drainBuildOutput(strings.NewReader(stream), &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Step 1/3")
	assert.Contains(t, out.String(), "Successfully built")
}

func TestDrainBuildOutput_SurfacesBuildError(t *testing.T) {
	stream := `{"stream":"Step 4/9 : RUN pip install -r requirements.txt\n"}
{"error":"The command '/bin/sh -c pip install -r requirements.txt' returned a non-zero code: 1","errorDetail":{"code":1}}
`
	err := drainBuildOutput(strings.NewReader(stream), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-zero code: 1")
}

func TestDrainBuildOutput_IgnoresUnparseableLines(t *testing.T) {
	stream := "not json at all\n{\"stream\":\"ok\\n\"}\n"
	var out strings.Builder

	require.NoError(t, drainBuildOutput(strings.NewReader(stream), &out))
	assert.Equal(t, "ok\n", out.String())
}
