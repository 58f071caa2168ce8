package visualize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitInputFiles(t *testing.T) {
	pcaps, logs, err := splitInputFiles([]string{"a.pcap", "cluster.log", "b.pcap"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pcap", "b.pcap"}, pcaps)
	assert.Equal(t, []string{"cluster.log"}, logs)
}

func TestSplitInputFilesRejectsOtherExtensions(t *testing.T) {
	_, _, err := splitInputFiles([]string{"a.pcap", "notes.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notes.txt")
}
