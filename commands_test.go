package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testXpub = "xpub68Gmy5EdvgibQVfPdqkBBCHxA5htiqg55crXYuXoQRKfDBFA1WEjWgP6LHhwBZeNK1VTsfTFUHCdrfp1bgwQ9xv5ski8PX9rL2dZXvgGDnw"

func TestRunDeriveMarksIndicesOutsideRanges(t *testing.T) {
	cfg, cmds, _, err := loadConfig(testArgs(t, "derive", "--from", "0",
		"--to", "3", "hashed|segwit<["+testXpub+"]/1/1-2>"))
	require.NoError(t, err)

	var out bytes.Buffer
	saved := stdout
	stdout = &out
	defer func() { stdout = saved }()

	require.NoError(t, runDerive(cfg, &cmds.derive))

	text := out.String()
	assert.Contains(t, text, "2 scripts per index")
	assert.Contains(t, text, "# key [")
	assert.Contains(t, text, "/1/1-2")
	assert.Equal(t, 2, strings.Count(text, "outside key ranges"))
	assert.Equal(t, 2, strings.Count(text, " 0014"))
	assert.Equal(t, 2, strings.Count(text, " 76a914"))
}
