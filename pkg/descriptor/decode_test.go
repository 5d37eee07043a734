package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/gplmt/pkg/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleExperiment = `<?xml version="1.0"?>
<experiment>
  <targets>
    <target name="N1" type="local"/>
    <target name="web" type="group">
      <target name="N1" type="local" ref="N1"/>
    </target>
  </targets>
  <tasklists>
    <tasklist name="T1" on-error="stop-tasklist" cleanup="cleanup1">
      <run expected-status="0">echo hi</run>
    </tasklist>
    <tasklist name="cleanup1">
      <run>echo cleaned</run>
    </tasklist>
  </tasklists>
  <steps>
    <step targets="N1" tasklist="T1"/>
    <synchronize/>
  </steps>
</experiment>
`

func TestLoadFileDecodesTargetsTasklistsAndSteps(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "exp.xml", sampleExperiment)

	desc, err := LoadFile(path)
	require.NoError(t, err)

	require.Contains(t, desc.Nodes, "N1")
	assert.Equal(t, types.NodeLocal, desc.Nodes["N1"].Kind)

	require.Contains(t, desc.Tasklists, "T1")
	t1 := desc.Tasklists["T1"]
	assert.Equal(t, types.ScopeStopTasklist, t1.OnError)
	assert.Equal(t, "cleanup1", t1.Cleanup)
	require.Len(t, t1.Children, 1)
	run, ok := t1.Children[0].(types.RunTask)
	require.True(t, ok)
	assert.Equal(t, "echo hi", run.Command)
	require.NotNil(t, run.ExpectedStatus)
	assert.Equal(t, 0, *run.ExpectedStatus)

	require.Len(t, desc.Steps, 2)
	step, ok := desc.Steps[0].(types.StepTasklist)
	require.True(t, ok)
	assert.Equal(t, "T1", step.Tasklist)
	assert.Equal(t, []string{"N1"}, step.Targets)

	_, ok = desc.Steps[1].(types.StepSynchronize)
	assert.True(t, ok)
}

func TestLoadFileRejectsUnknownTasklistOnErrorScope(t *testing.T) {
	dir := t.TempDir()
	xmlContent := `<experiment>
  <targets><target name="N1" type="local"/></targets>
  <tasklists>
    <tasklist name="T1" on-error="not-a-scope">
      <run>echo hi</run>
    </tasklist>
  </tasklists>
  <steps><step targets="N1" tasklist="T1"/></steps>
</experiment>`
	path := writeFile(t, dir, "bad.xml", xmlContent)

	_, err := LoadFile(path)
	require.Error(t, err)
	var synErr *types.SyntaxError
	assert.ErrorAs(t, err, &synErr)
}

func TestLoadFileResolvesIncludesWithPrefix(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "child.xml", `<experiment>
  <targets><target name="N2" type="local"/></targets>
  <tasklists>
    <tasklist name="T2"><run>echo child</run></tasklist>
  </tasklists>
  <steps><step targets="N2" tasklist="T2"/></steps>
</experiment>`)

	parentPath := writeFile(t, dir, "parent.xml", `<experiment>
  <targets><target name="N1" type="local"/></targets>
  <tasklists><tasklist name="T1"><run>echo hi</run></tasklist></tasklists>
  <steps>
    <include file="child.xml" prefix="c"/>
    <step targets="N1" tasklist="T1"/>
  </steps>
</experiment>`)

	desc, err := LoadFile(parentPath)
	require.NoError(t, err)
	assert.Contains(t, desc.Nodes, "c.N2")
	assert.Contains(t, desc.Tasklists, "c.T2")
	assert.Len(t, desc.Steps, 1, "included steps are discarded, only the parent's own step remains")
}

func TestLoadFileDetectsCyclicInclude(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.xml")
	bPath := filepath.Join(dir, "b.xml")
	require.NoError(t, os.WriteFile(aPath, []byte(`<experiment><targets/><tasklists/><steps><include file="b.xml"/></steps></experiment>`), 0o644))
	require.NoError(t, os.WriteFile(bPath, []byte(`<experiment><targets/><tasklists/><steps><include file="a.xml"/></steps></experiment>`), 0o644))

	_, err := LoadFile(aPath)
	require.Error(t, err)
	var synErr *types.SyntaxError
	assert.ErrorAs(t, err, &synErr)
}

func TestLoadFileParsesLoopStep(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "loop.xml", `<experiment>
  <targets><target name="N1" type="local"/></targets>
  <tasklists><tasklist name="T1"><run>echo hi</run></tasklist></tasklists>
  <steps>
    <loop repeat="3">
      <step targets="N1" tasklist="T1"/>
    </loop>
  </steps>
</experiment>`)

	desc, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, desc.Steps, 1)
	loop, ok := desc.Steps[0].(types.StepLoop)
	require.True(t, ok)
	assert.Equal(t, types.LoopCounted, loop.Mode)
	assert.Equal(t, 3, loop.Repeat)
	require.Len(t, loop.Body, 1)
}

func TestLoadFileRejectsAmbiguousLoopAttributes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "loop.xml", `<experiment>
  <targets/><tasklists/>
  <steps><loop repeat="3" duration="PT1S"/></steps>
</experiment>`)

	_, err := LoadFile(path)
	require.Error(t, err)
	var synErr *types.SyntaxError
	assert.ErrorAs(t, err, &synErr)
}

func TestLoadFileMissingFileIsSetupError(t *testing.T) {
	_, err := LoadFile("/nonexistent/path/to/experiment.xml")
	require.Error(t, err)
	var setupErr *types.SetupError
	assert.ErrorAs(t, err, &setupErr)
}
