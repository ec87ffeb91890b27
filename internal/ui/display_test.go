package ui

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	SetOutput(&out, &errOut)
	InitUI(true, false)
	t.Cleanup(func() { SetOutput(os.Stdout, os.Stderr) })
	return &out, &errOut
}

func TestMessages(t *testing.T) {
	out, errOut := capture(t)

	Success("wrote %s", "Foo.pdf")
	Warning("slow")
	Info("20 pages")
	Error("failed %d", 2)

	assert.Equal(t, "✓ wrote Foo.pdf\n⚠ slow\nℹ 20 pages\n", out.String())
	assert.Equal(t, "✗ failed 2\n", errOut.String())
}

func TestStepRequiresVerbose(t *testing.T) {
	out, _ := capture(t)

	Step("hidden")
	assert.Empty(t, out.String())

	InitUI(true, true)
	defer InitUI(true, false)
	Step("shown")
	assert.Equal(t, "→ shown\n", out.String())
	assert.True(t, Verbose())
}

func TestTable(t *testing.T) {
	out, _ := capture(t)

	Table([]string{"ID", "Name"}, [][]string{{"1", "Foo"}, {"2", "Longer name"}})

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	assert.Len(t, lines, 4)
	assert.Equal(t, "ID  Name", strings.TrimRight(lines[0], " "))
	assert.Equal(t, "--  ----", strings.TrimRight(lines[1], " "))
	assert.Equal(t, "2   Longer name", lines[3])
}

func TestSection(t *testing.T) {
	out, _ := capture(t)
	Section("Generate")
	assert.Equal(t, "\nGenerate\n========\n\n", out.String())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "4s", FormatDuration(4*time.Second))
	assert.Equal(t, "2m 5s", FormatDuration(2*time.Minute+5*time.Second))
	assert.Equal(t, "1h 0m 1s", FormatDuration(time.Hour+time.Second))
}
