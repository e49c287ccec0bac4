package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/toolparam/toolparam/types"
)

func newTestLogger(style types.OutputStyle) (*Logger, *bytes.Buffer, *bytes.Buffer) {
	l := NewLogger(style)
	var out, errOut bytes.Buffer
	l.Out = &out
	l.Err = &errOut
	return l, &out, &errOut
}

func TestLoggerStyles(t *testing.T) {
	tests := []struct {
		name    string
		style   types.OutputStyle
		wantOut string
		wantErr string
	}{
		{
			name:    "human",
			style:   types.StyleHuman,
			wantOut: "submitted 3 runs\n",
			wantErr: "Error: boom\n",
		},
		{
			name:    "verbose",
			style:   types.StyleHumanVerbose,
			wantOut: "submitted 3 runs\ndetail\n",
			wantErr: "Error: boom\n",
		},
		{
			name:    "json",
			style:   types.StyleMachineJSON,
			wantOut: "{\n  \"runs\": 3\n}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, out, errOut := newTestLogger(tt.style)
			l.Info("submitted %d runs", 3)
			l.Verbose("detail")
			l.Error("boom")
			l.Json(map[string]int{"runs": 3})

			assert.Equal(t, tt.wantOut, out.String())
			assert.Equal(t, tt.wantErr, errOut.String())
		})
	}
}
