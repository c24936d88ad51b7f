package piditer

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFd struct {
	target string
	fdinfo string
}

func bpfFd(progID uint32) fakeFd {
	return fakeFd{
		target: bpfProgLinkTarget,
		fdinfo: fmt.Sprintf("pos:\t0\nflags:\t02000002\nmnt_id:\t15\nprog_tag:\tdeadbeefcafe\nprog_id:\t%d\n", progID),
	}
}

func plainFd(target string) fakeFd {
	return fakeFd{target: target, fdinfo: "pos:\t0\nflags:\t0100002\nmnt_id:\t24\n"}
}

func writeProc(t *testing.T, root string, pid int, comm string, fds map[int]fakeFd) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "fd"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "fdinfo"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comm"), []byte(comm+"\n"), 0o644))
	for fd, f := range fds {
		require.NoError(t, os.Symlink(f.target, filepath.Join(dir, "fd", strconv.Itoa(fd))))
		if f.fdinfo != "" {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "fdinfo", strconv.Itoa(fd)), []byte(f.fdinfo), 0o644))
		}
	}
}

func snapshot(t *testing.T, root string, policy Policy) *Sink {
	t.Helper()
	src, err := NewProcSource(root, policy)
	require.NoError(t, err)
	defer src.Close()

	sink := NewSink(0)
	require.NoError(t, src.Snapshot(sink))
	return sink
}

func TestProcSource_StrictFindsHolder(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, 4242, "loader", map[int]fakeFd{
		0: plainFd("/dev/null"),
		3: bpfFd(17),
	})
	writeProc(t, root, 5555, "netd", map[int]fakeFd{
		1: plainFd("socket:[4711]"),
	})

	sink := snapshot(t, root, PolicyStrict)
	require.Len(t, sink.Records(), 1)
	rec := sink.Records()[0]
	assert.Equal(t, uint32(17), rec.ProgID)
	assert.Equal(t, int32(4242), rec.Pid)
	assert.Equal(t, "loader", rec.Name())
}

func TestProcSource_PermissiveReportsEveryHandle(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, 4242, "loader", map[int]fakeFd{
		0: plainFd("/dev/null"),
		3: bpfFd(17),
	})
	writeProc(t, root, 5555, "netd", map[int]fakeFd{
		1: plainFd("socket:[4711]"),
	})

	sink := snapshot(t, root, PolicyPermissive)
	records := sink.Records()
	require.Len(t, records, 3)

	matched := 0
	for _, rec := range records {
		if rec.ProgID == 17 {
			matched++
			assert.Equal(t, int32(4242), rec.Pid)
		} else {
			assert.Zero(t, rec.ProgID, "non-program handles must carry a discardable zero id")
		}
	}
	assert.Equal(t, 1, matched)
}

func TestProcSource_TwoHoldersOfSameProgram(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, 100, "daemon-a", map[int]fakeFd{4: bpfFd(5)})
	writeProc(t, root, 200, "daemon-b", map[int]fakeFd{7: bpfFd(5)})

	sink := snapshot(t, root, PolicyStrict)
	records := sink.Records()
	require.Len(t, records, 2)
	pids := map[int32]bool{}
	for _, rec := range records {
		assert.Equal(t, uint32(5), rec.ProgID)
		pids[rec.Pid] = true
	}
	assert.Len(t, pids, 2)
}

func TestProcSource_FdGoneMidWalk(t *testing.T) {
	root := t.TempDir()
	// fd link still listed but fdinfo already gone: the handle is closing
	// and must be skipped without aborting the walk.
	writeProc(t, root, 4242, "loader", map[int]fakeFd{
		3: {target: bpfProgLinkTarget},
		5: bpfFd(9),
	})

	sink := snapshot(t, root, PolicyStrict)
	require.Len(t, sink.Records(), 1)
	assert.Equal(t, uint32(9), sink.Records()[0].ProgID)
}

func TestProcSource_UnreadableProcSkipped(t *testing.T) {
	root := t.TempDir()
	// A pid directory without an fd table (exited or hidden) contributes
	// nothing and does not fail the snapshot.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "6666"), 0o755))
	writeProc(t, root, 4242, "loader", map[int]fakeFd{3: bpfFd(17)})

	sink := snapshot(t, root, PolicyStrict)
	require.Len(t, sink.Records(), 1)
}

func TestProcSource_LongCommTruncated(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, 4242, "a-very-long-process-name", map[int]fakeFd{3: bpfFd(17)})

	sink := snapshot(t, root, PolicyStrict)
	require.Len(t, sink.Records(), 1)
	rec := sink.Records()[0]
	assert.Equal(t, "a-very-long-pro", rec.Name())
	assert.Equal(t, byte(0), rec.Comm[CommLen-1])
}

func TestDetectProcPolicy(t *testing.T) {
	root := t.TempDir()
	assert.Equal(t, PolicyPermissive, DetectProcPolicy(root))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "self", "fd"), 0o755))
	require.NoError(t, os.Symlink("/dev/null", filepath.Join(root, "self", "fd", "0")))
	assert.Equal(t, PolicyStrict, DetectProcPolicy(root))
}
