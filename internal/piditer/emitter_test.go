package piditer

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTask struct {
	tgid    int32
	comm    string
	commErr error
}

func (t *fakeTask) TGID() int32 { return t.tgid }

func (t *fakeTask) LeaderComm() (string, error) { return t.comm, t.commErr }

type fakeHandle struct {
	program     bool
	classifyErr error
	id          uint32
	idErr       error
}

func (h *fakeHandle) IsProgram() (bool, error) { return h.program, h.classifyErr }

func (h *fakeHandle) ProgID() (uint32, error) { return h.id, h.idErr }

func progPair(tgid int32, comm string, id uint32) Pair {
	return Pair{
		Task:   &fakeTask{tgid: tgid, comm: comm},
		Handle: &fakeHandle{program: true, id: id},
	}
}

func otherPair(tgid int32, comm string) Pair {
	return Pair{
		Task:   &fakeTask{tgid: tgid, comm: comm},
		Handle: &fakeHandle{program: false},
	}
}

func TestVisit_StrictEmitsOnlyProgramHandles(t *testing.T) {
	sink := NewSink(0)
	em := NewEmitter(PolicyStrict, sink)

	em.Visit(otherPair(1, "init"))
	em.Visit(progPair(4242, "loader", 17))
	em.Visit(otherPair(100, "sshd"))
	em.Visit(otherPair(101, "bash"))

	records := sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, uint32(17), records[0].ProgID)
	assert.Equal(t, int32(4242), records[0].Pid)
	assert.Equal(t, "loader", records[0].Name())
}

func TestVisit_StrictSkipsUnclassifiableHandles(t *testing.T) {
	sink := NewSink(0)
	em := NewEmitter(PolicyStrict, sink)

	em.Visit(Pair{
		Task:   &fakeTask{tgid: 1, comm: "init"},
		Handle: &fakeHandle{classifyErr: errors.New("permission denied")},
	})

	assert.Empty(t, sink.Records())
}

func TestVisit_PermissiveEmitsOnePerPair(t *testing.T) {
	sink := NewSink(0)
	em := NewEmitter(PolicyPermissive, sink)

	em.Visit(otherPair(1, "init"))
	em.Visit(progPair(4242, "loader", 17))
	em.Visit(otherPair(100, "sshd"))

	// Every present pair yields exactly one record; non-program handles
	// carry a zero id for the consumer to discard.
	records := sink.Records()
	require.Len(t, records, 3)
	assert.Equal(t, uint32(0), records[0].ProgID)
	assert.Equal(t, uint32(17), records[1].ProgID)
	assert.Equal(t, uint32(0), records[2].ProgID)
}

func TestVisit_AbsentTaskOrHandleSkipsButContinues(t *testing.T) {
	sink := NewSink(0)
	em := NewEmitter(PolicyStrict, sink)

	em.Visit(Pair{Task: nil, Handle: &fakeHandle{program: true, id: 1}})
	em.Visit(Pair{Task: &fakeTask{tgid: 1, comm: "init"}, Handle: nil})
	em.Visit(progPair(4242, "loader", 17))

	// Subsequent pairs are still processed after absent ones.
	require.Len(t, sink.Records(), 1)
	assert.Equal(t, uint32(17), sink.Records()[0].ProgID)
}

func TestVisit_HandleGoneBetweenFilterAndExtraction(t *testing.T) {
	sink := NewSink(0)
	em := NewEmitter(PolicyStrict, sink)

	em.Visit(Pair{
		Task:   &fakeTask{tgid: 1, comm: "init"},
		Handle: &fakeHandle{program: true, idErr: fs.ErrNotExist},
	})

	assert.Empty(t, sink.Records())
}

func TestVisit_PartialIDReadEmitsZero(t *testing.T) {
	sink := NewSink(0)
	em := NewEmitter(PolicyStrict, sink)

	em.Visit(Pair{
		Task:   &fakeTask{tgid: 7, comm: "agent"},
		Handle: &fakeHandle{program: true, idErr: errors.New("read failed")},
	})

	require.Len(t, sink.Records(), 1)
	assert.Equal(t, uint32(0), sink.Records()[0].ProgID)
	assert.Equal(t, int32(7), sink.Records()[0].Pid)
}

func TestVisit_NameTruncatedAndNulTerminated(t *testing.T) {
	sink := NewSink(0)
	em := NewEmitter(PolicyStrict, sink)

	em.Visit(progPair(1, "a-very-long-process-name", 3))

	require.Len(t, sink.Records(), 1)
	rec := sink.Records()[0]
	assert.Equal(t, byte(0), rec.Comm[CommLen-1], "comm must stay NUL-terminated")
	assert.Equal(t, "a-very-long-pro", rec.Name())
}

func TestVisit_FailedNameReadStillEmits(t *testing.T) {
	sink := NewSink(0)
	em := NewEmitter(PolicyStrict, sink)

	em.Visit(Pair{
		Task:   &fakeTask{tgid: 9, commErr: errors.New("task exited")},
		Handle: &fakeHandle{program: true, id: 21},
	})

	require.Len(t, sink.Records(), 1)
	rec := sink.Records()[0]
	assert.Equal(t, uint32(21), rec.ProgID)
	assert.Equal(t, int32(9), rec.Pid)
	assert.Equal(t, "", rec.Name())
}

func TestVisit_TwoHoldersOfSameProgram(t *testing.T) {
	sink := NewSink(0)
	em := NewEmitter(PolicyStrict, sink)

	em.Visit(progPair(100, "daemon-a", 5))
	em.Visit(progPair(200, "daemon-b", 5))

	records := sink.Records()
	require.Len(t, records, 2)
	assert.Equal(t, uint32(5), records[0].ProgID)
	assert.Equal(t, uint32(5), records[1].ProgID)
	assert.NotEqual(t, records[0].Pid, records[1].Pid)
}

func TestVisit_OrderFollowsTraversal(t *testing.T) {
	sink := NewSink(0)
	em := NewEmitter(PolicyStrict, sink)

	for i := uint32(1); i <= 5; i++ {
		em.Visit(progPair(int32(i), "p", i))
	}

	records := sink.Records()
	require.Len(t, records, 5)
	for i, rec := range records {
		assert.Equal(t, uint32(i+1), rec.ProgID)
	}
}

func TestVisit_FullSinkDropsSilently(t *testing.T) {
	sink := NewSink(2)
	em := NewEmitter(PolicyStrict, sink)

	for i := uint32(1); i <= 4; i++ {
		em.Visit(progPair(int32(i), "p", i))
	}

	assert.Len(t, sink.Records(), 2)
	assert.Equal(t, 2, sink.Dropped())
}
