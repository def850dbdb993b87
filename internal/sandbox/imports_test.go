package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractImports(t *testing.T) {
	code := `import pandas as pd
import os
from sklearn.model_selection import train_test_split
from pathlib import Path
import matplotlib.pyplot as plt
import pandas
x = 1  # import nothing here
`
	assert.Equal(t, []string{"matplotlib", "pandas", "sklearn"}, extractImports(code))
}

func TestExtractImportsStdlibOnly(t *testing.T) {
	code := "import json\nimport csv\nfrom collections import Counter"
	assert.Empty(t, extractImports(code))
}

func TestExtractImportsIndented(t *testing.T) {
	code := "def f():\n    import numpy\n    return numpy.zeros(3)"
	assert.Equal(t, []string{"numpy"}, extractImports(code))
}

func TestCollectArtifactsSkipsDepsDir(t *testing.T) {
	cfg := shellConfig(t)
	e := NewDirectExecutor(cfg, nil)

	outcome, err := e.Execute(context.Background(), Request{
		Code: "mkdir -p .deps/pkg; echo lib > .deps/pkg/mod.py; echo result > out.txt",
	})
	require.NoError(t, err)
	require.Equal(t, StatusOK, outcome.Status)

	require.Len(t, outcome.Artifacts, 1, "installed packages must not surface as artifacts")
	assert.Equal(t, "out.txt", outcome.Artifacts[0].Name)
}
