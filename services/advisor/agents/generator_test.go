// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for code extraction from model replies

package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPythonCode(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{
			name:  "python fence",
			reply: "Here is the code:\n```python\nimport pandas as pd\n```\nDone.",
			want:  "import pandas as pd",
		},
		{
			name:  "last python fence wins",
			reply: "```python\nbroken = \n```\nActually, corrected:\n```python\nfixed = 1\n```",
			want:  "fixed = 1",
		},
		{
			name:  "bare fence",
			reply: "```\nx = 1\n```",
			want:  "x = 1",
		},
		{
			name:  "bare fence with language tag",
			reply: "```py\nx = 1\n```",
			want:  "x = 1",
		},
		{
			name:  "no fences",
			reply: "  import numpy as np\n",
			want:  "import numpy as np",
		},
		{
			name:  "unterminated python fence",
			reply: "```python\nimport sklearn",
			want:  "import sklearn",
		},
		{
			name:  "empty reply",
			reply: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPythonCode(tt.reply))
		})
	}
}

func TestIsLanguageTag(t *testing.T) {
	assert.True(t, isLanguageTag("py"))
	assert.True(t, isLanguageTag("Python"))
	assert.False(t, isLanguageTag("x = 1"))
	assert.False(t, isLanguageTag(""))
	assert.False(t, isLanguageTag("import pandas"))
}
