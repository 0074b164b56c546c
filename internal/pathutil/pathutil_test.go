package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "plain path passes through",
			input: "/etc/hosts",
			want:  "/etc/hosts",
		},
		{
			name:  "relative path passes through",
			input: "data/config.yaml",
			want:  "data/config.yaml",
		},
		{
			name:  "empty string passes through",
			input: "",
			want:  "",
		},
		{
			name:  "non-file URL passes through",
			input: "https://example.com/path",
			want:  "https://example.com/path",
		},
		{
			name:  "file URL converts to path",
			input: "file:///tmp/data.txt",
			want:  "/tmp/data.txt",
		},
		{
			name:  "percent escapes are decoded",
			input: "file:///tmp/with%20space",
			want:  "/tmp/with space",
		},
		{
			name:  "localhost host is accepted",
			input: "file://localhost/var/log/app.log",
			want:  "/var/log/app.log",
		},
		{
			name:    "remote host is rejected",
			input:   "file://server/share/file",
			wantErr: true,
		},
		{
			name:    "file URL without path is rejected",
			input:   "file://localhost",
			wantErr: true,
		},
		{
			name:    "invalid escape is rejected",
			input:   "file:///tmp/%zz",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromURL(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsFileURL(t *testing.T) {
	assert.True(t, IsFileURL("file:///tmp"))
	assert.True(t, IsFileURL("file://localhost/tmp"))
	assert.False(t, IsFileURL("/tmp"))
	assert.False(t, IsFileURL("https://example.com"))
	assert.False(t, IsFileURL(""))
}
