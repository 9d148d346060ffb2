package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/sectmerge/internal/journal"
	"github.com/lherron/sectmerge/internal/testutil"
)

type testEnv struct {
	dir     string
	file    string
	journal string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, name := range []string{"SECTMERGE_FILE", "SECTMERGE_SECTION", "SECTMERGE_KEY", "SECTMERGE_JOURNAL", "SECTMERGE_OUTPUT", "SECTMERGE_LOCK_TIMEOUT"} {
		t.Setenv(name, "")
	}
	return &testEnv{
		dir:     dir,
		file:    filepath.Join(dir, ".cargo", "config.toml"),
		journal: filepath.Join(dir, "journal.db"),
	}
}

func (e *testEnv) write(t *testing.T, text string) {
	t.Helper()
	testutil.WriteFile(t, filepath.Dir(e.file), filepath.Base(e.file), text)
}

func (e *testEnv) read(t *testing.T) string {
	t.Helper()
	return testutil.ReadFile(t, e.file)
}

// run executes the root command against the test file and journal.
func (e *testEnv) run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--file", e.file, "--journal", e.journal, "--log-level", "error"}, args...))
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

// resetFlags restores every flag to its default so runs do not leak into
// each other through the package-level command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func (e *testEnv) entries(t *testing.T) []journal.Entry {
	t.Helper()
	return testutil.Entries(t, e.journal)
}

func TestApplyCreatesFile(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "apply", "/usr/local/bin/sccache")
	require.NoError(t, err)
	assert.Contains(t, out, "Created")
	assert.Equal(t, "[build]\nrustc-wrapper = \"/usr/local/bin/sccache\"\n", env.read(t))

	entries := env.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.SourceApply, entries[0].Source)
	assert.False(t, entries[0].Existed)
	assert.True(t, entries[0].Changed)
}

func TestApplyIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "[net]\nretry = 2\n[build]\nrustc-wrapper = \"/old\"\njobs = 4\n")

	_, _, err := env.run(t, "apply", "/new")
	require.NoError(t, err)
	first := env.read(t)
	assert.Equal(t, "[net]\nretry = 2\n[build]\njobs = 4\nrustc-wrapper = \"/new\"\n", first)

	out, _, err := env.run(t, "apply", "/new")
	require.NoError(t, err)
	assert.Contains(t, out, "Unchanged")
	assert.Equal(t, first, env.read(t))

	entries := env.entries(t)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Changed, "newest entry should be the no-op")
}

func TestApplyExplicitDirective(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "[build]\njobs = 4\n")

	_, _, err := env.run(t, "apply", "net", "retry", "3")
	require.NoError(t, err)
	assert.Equal(t, "[build]\njobs = 4\n[net]\nretry = \"3\"\n", env.read(t))
}

func TestApplyArgumentCount(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "apply", "build", "rustc-wrapper")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected <value> or <section> <key> <value>")
}

func TestApplyInvalidSection(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "apply", "a]b", "k", "v")
	require.Error(t, err)
	_, statErr := os.Stat(env.file)
	assert.True(t, os.IsNotExist(statErr), "nothing should be written for an invalid directive")
}

func TestApplyDryRun(t *testing.T) {
	env := newTestEnv(t)
	original := "[build]\nrustc-wrapper = \"/old\"\n"
	env.write(t, original)

	out, _, err := env.run(t, "apply", "--dry-run", "/new")
	require.NoError(t, err)
	assert.Contains(t, out, "-rustc-wrapper = \"/old\"")
	assert.Contains(t, out, "+rustc-wrapper = \"/new\"")
	assert.Equal(t, original, env.read(t), "dry run must not write")

	_, err = os.Stat(env.journal)
	assert.True(t, os.IsNotExist(err) || len(env.entries(t)) == 0, "dry run must not record")
}

func TestApplyJSONOutput(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "apply", "-o", "json", "/x")
	require.NoError(t, err)

	var got applyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, env.file, got.Path)
	assert.Equal(t, "build", got.Section)
	assert.Equal(t, "rustc-wrapper", got.Key)
	assert.Equal(t, "/x", got.Value)
	assert.True(t, got.Changed)
	assert.NotEmpty(t, got.EntryID)
}

func TestApplyNoJournal(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "--no-journal", "apply", "/x")
	require.NoError(t, err)
	_, err = os.Stat(env.journal)
	assert.True(t, os.IsNotExist(err))
}

func TestDiffCommand(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "[build]\nrustc-wrapper = \"/x\"\n")

	out, _, err := env.run(t, "diff", "/x")
	require.NoError(t, err)
	assert.Contains(t, out, "No changes")

	out, _, err = env.run(t, "diff", "/y")
	require.NoError(t, err)
	assert.Contains(t, out, "+rustc-wrapper = \"/y\"")
}

func TestGetCommand(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "[build]\nrustc-wrapper = \"/first\"\n[net]\n[build]\nrustc-wrapper = '/last'\n")

	out, _, err := env.run(t, "get")
	require.NoError(t, err)
	assert.Equal(t, "/last\n", out)

	_, _, err = env.run(t, "get", "net", "retry")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not set")

	out, _, err = env.run(t, "get", "-o", "json", "net", "retry")
	require.NoError(t, err)
	var got getOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.False(t, got.Found)
}

func TestGetMissingFile(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "get")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestCheckCommand(t *testing.T) {
	env := newTestEnv(t)

	env.write(t, "[build]\njobs = 4\n")
	out, _, err := env.run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "OK")

	env.write(t, "[build]\njobs = \n")
	_, _, err = env.run(t, "check")
	require.Error(t, err)

	env.write(t, "[build]\n[build]\n")
	out, _, err = env.run(t, "check")
	require.Error(t, err, "duplicate tables are not valid TOML")
	assert.Contains(t, out, "appears 2 times")
}

func TestHookCommand(t *testing.T) {
	env := newTestEnv(t)
	toolDir := filepath.Join(env.dir, "tools")
	tool := testutil.Executable(t, toolDir, "cachewrap", 0755)

	env.write(t, "[net]\nretry = 2\n")
	out, stderr, err := env.run(t, "hook", "--program", "cachewrap", "--dir", toolDir)
	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Contains(t, out, "updated")
	assert.Equal(t, "[net]\nretry = 2\n[build]\nrustc-wrapper = \""+tool+"\"\n", env.read(t))

	entries := env.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.SourceHook, entries[0].Source)
}

func TestHookBestEffort(t *testing.T) {
	env := newTestEnv(t)
	original := "[build]\njobs = 4\n"
	env.write(t, original)

	_, stderr, err := env.run(t, "hook", "--program", "definitely-not-installed-tool", "--dir", env.dir)
	require.NoError(t, err, "hook failures are warnings by default")
	assert.Contains(t, stderr, "warning:")
	assert.Equal(t, original, env.read(t))

	_, _, err = env.run(t, "hook", "--strict", "--program", "definitely-not-installed-tool", "--dir", env.dir)
	assert.Error(t, err)
}

func TestHookRequiresProgram(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "hook")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "program")
}

func TestHistoryAndRestore(t *testing.T) {
	env := newTestEnv(t)
	original := "[build]\njobs = 4\n"
	env.write(t, original)

	_, _, err := env.run(t, "apply", "/x")
	require.NoError(t, err)

	out, _, err := env.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "rustc-wrapper")
	assert.Contains(t, out, "/x")

	entries := env.entries(t)
	require.Len(t, entries, 1)

	out, _, err = env.run(t, "restore", entries[0].ShortID())
	require.NoError(t, err)
	assert.Contains(t, out, "Restored")
	assert.Equal(t, original, env.read(t))

	entries = env.entries(t)
	require.Len(t, entries, 2)
	assert.Equal(t, journal.SourceRestore, entries[0].Source)
}

func TestRestoreRemovesCreatedFile(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "apply", "/x")
	require.NoError(t, err)
	entries := env.entries(t)
	require.Len(t, entries, 1)

	out, _, err := env.run(t, "restore", entries[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed")
	_, err = os.Stat(env.file)
	assert.True(t, os.IsNotExist(err))
}

func TestRestoreRefusesModifiedFile(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "[build]\n")

	_, _, err := env.run(t, "apply", "/x")
	require.NoError(t, err)
	id := env.entries(t)[0].ID

	env.write(t, "[build]\nrustc-wrapper = \"/edited\"\n")
	_, _, err = env.run(t, "restore", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, _, err = env.run(t, "restore", "--force", id)
	require.NoError(t, err)
	assert.Equal(t, "[build]\n", env.read(t))
}

func TestRestoreUnknownEntry(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "restore", "00000000")
	require.ErrorIs(t, err, journal.ErrNotFound)
}

func TestDoctorCommand(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "[build]\nrustc-wrapper = \"/x\"\n")

	out, _, err := env.run(t, "doctor", "-o", "json")
	require.NoError(t, err)

	var report doctorReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, env.file, report.Config["file"].Value)
	assert.Equal(t, "command-line flag --file", report.Config["file"].Source)
	assert.Equal(t, 0, report.Errors)

	statuses := map[string]string{}
	for _, c := range report.Checks {
		statuses[c.Name] = c.Status
	}
	assert.Equal(t, "ok", statuses["toml_valid"])
	assert.Equal(t, "ok", statuses["section_present"])
	assert.Equal(t, "ok", statuses["directive_set"])

	messages := map[string]string{}
	for _, c := range report.Checks {
		messages[c.Name] = c.Message
	}
	assert.Equal(t, "build", messages["sections"])
}

func TestDoctorListsSections(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "[alias]\nb = \"build\"\n[build]\njobs = 4\n[[bin]]\nname = \"x\"\n")

	out, _, err := env.run(t, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "sections: alias, build, [bin]")
}

func TestPorcelainOutput(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "apply", "/x")
	require.NoError(t, err)

	out, _, err := env.run(t, "history", "--porcelain")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ID\tAPPLIED\tSOURCE\tCHANGED\tSECTION\tKEY\tVALUE", lines[0])
	assert.Contains(t, lines[1], "\tapply\ttrue\tbuild\trustc-wrapper\t/x")

	out, _, err = env.run(t, "get", "-o", "json", "--porcelain")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"), "porcelain json is a single line")
}

func TestDoctorReportsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "[build]\n[build]\n")

	out, _, err := env.run(t, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "appears 2 times")
	assert.True(t, strings.Contains(out, "Status: error"), "duplicate tables fail TOML validation")
}

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sectmerge "+Version)
}
