package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/kvault/internal/persist"
)

type fakeMR struct {
	registered map[string][]byte
	invokeErr  error
	invokeOut  []byte
}

func newFakeMR() *fakeMR {
	return &fakeMR{registered: map[string][]byte{}}
}

func (f *fakeMR) Register(name string, soBytes []byte) error {
	if _, ok := f.registered[name]; ok {
		return ErrFuncExists
	}
	f.registered[name] = soBytes
	return nil
}

func (f *fakeMR) Invoke(name string, pairs []KVPair) ([]byte, error) {
	if _, ok := f.registered[name]; !ok {
		return nil, ErrFuncMissing
	}
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	return f.invokeOut, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kvault.db")
	log, err := persist.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	cfg := Config{
		Buckets:     4,
		AdminName:   "admin",
		MRUCapacity: 8,
		UploadMax:   1 << 20,
		DownloadMax: 1 << 20,
		RequestMax:  1 << 20,
		Window:      time.Minute,
	}
	return New(cfg, log, newFakeMR(), zerolog.Nop())
}

func TestAddUserAndAuthenticate(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddUser("alice", "pw1"))
	require.ErrorIs(t, s.AddUser("alice", "pw2"), ErrUserExists)

	require.NoError(t, s.authenticate("alice", "pw1"))
	require.ErrorIs(t, s.authenticate("alice", "wrong"), ErrLogin)
	require.ErrorIs(t, s.authenticate("bob", "pw1"), ErrLogin)
}

func TestSetAndGetUserData(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddUser("alice", "pw1"))

	_, err := s.GetUserData("alice", "pw1", "alice")
	require.ErrorIs(t, err, ErrNoData)

	content := make([]byte, 100)
	require.NoError(t, s.SetUserData("alice", "pw1", content))

	got, err := s.GetUserData("alice", "pw1", "alice")
	require.NoError(t, err)
	require.Equal(t, content, got)

	_, err = s.GetUserData("alice", "pw1", "bob")
	require.ErrorIs(t, err, ErrNoUser)
}

func TestKVInsertUpsertGetDelete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddUser("alice", "pw1"))

	require.NoError(t, s.KVInsert("alice", "pw1", "k", []byte("v1")))
	require.ErrorIs(t, s.KVInsert("alice", "pw1", "k", []byte("v2")), ErrKey)

	inserted, err := s.KVUpsert("alice", "pw1", "k", []byte("v2"))
	require.NoError(t, err)
	require.False(t, inserted)

	val, err := s.KVGet("alice", "pw1", "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), val)

	require.NoError(t, s.KVDelete("alice", "pw1", "k"))
	_, err = s.KVGet("alice", "pw1", "k")
	require.ErrorIs(t, err, ErrKey)
	require.ErrorIs(t, s.KVDelete("alice", "pw1", "k"), ErrKey)
}

func TestKVUpsertInsertVsUpdate(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddUser("alice", "pw1"))

	inserted, err := s.KVUpsert("alice", "pw1", "k", []byte("v1"))
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = s.KVUpsert("alice", "pw1", "k", []byte("v2"))
	require.NoError(t, err)
	require.False(t, inserted)
}

func TestKVTopTracksMRUAndDropsDeleted(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddUser("alice", "pw1"))
	require.NoError(t, s.KVInsert("alice", "pw1", "a", []byte("1")))
	require.NoError(t, s.KVInsert("alice", "pw1", "b", []byte("2")))

	top, err := s.KVTop("alice", "pw1")
	require.NoError(t, err)
	require.Equal(t, "b\na", string(top))

	require.NoError(t, s.KVDelete("alice", "pw1", "b"))
	top, err = s.KVTop("alice", "pw1")
	require.NoError(t, err)
	require.Equal(t, "a", string(top))
}

func TestKVAllAndGetAllUsers(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddUser("alice", "pw1"))
	require.NoError(t, s.AddUser("bob", "pw1"))
	require.NoError(t, s.KVInsert("alice", "pw1", "z", []byte("1")))
	require.NoError(t, s.KVInsert("alice", "pw1", "a", []byte("2")))

	users, err := s.GetAllUsers("alice", "pw1")
	require.NoError(t, err)
	require.Equal(t, "alice\nbob", string(users))

	keys, err := s.KVAll("alice", "pw1")
	require.NoError(t, err)
	require.Equal(t, "a\nz", string(keys))
}

func TestRequestQuotaCountedEvenWhenOtherChecksPass(t *testing.T) {
	s := newTestStore(t)
	s.cfg.RequestMax = 2
	require.NoError(t, s.AddUser("alice", "pw1"))

	require.NoError(t, s.KVInsert("alice", "pw1", "a", []byte("1")))
	require.NoError(t, s.KVInsert("alice", "pw1", "b", []byte("2")))
	require.ErrorIs(t, s.KVInsert("alice", "pw1", "c", []byte("3")), ErrQuotaReq)
}

func TestUploadQuotaRejectsOversizedWrite(t *testing.T) {
	s := newTestStore(t)
	s.cfg.UploadMax = 4
	require.NoError(t, s.AddUser("alice", "pw1"))

	require.ErrorIs(t, s.KVInsert("alice", "pw1", "k", []byte("12345")), ErrQuotaUp)
}

func TestAdminGateOnRegisterMR(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddUser("alice", "pw1"))
	require.NoError(t, s.AddUser("admin", "pw1"))

	require.ErrorIs(t, s.RegisterMR("alice", "pw1", "wc", []byte("so")), ErrNotAdmin)
	require.NoError(t, s.RegisterMR("admin", "pw1", "wc", []byte("so")))
	require.ErrorIs(t, s.RegisterMR("admin", "pw1", "wc", []byte("so")), ErrFuncExists)
}

func TestInvokeMRRunsOverAllPairs(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddUser("admin", "pw1"))
	require.NoError(t, s.KVInsert("admin", "pw1", "k1", []byte("v1")))

	mr := s.mr.(*fakeMR)
	require.NoError(t, s.RegisterMR("admin", "pw1", "wc", []byte("so")))
	mr.invokeOut = []byte("result")

	out, err := s.InvokeMR("admin", "pw1", "wc")
	require.NoError(t, err)
	require.Equal(t, []byte("result"), out)

	_, err = s.InvokeMR("admin", "pw1", "missing")
	require.ErrorIs(t, err, ErrFuncMissing)
}

func TestPersistThenReplayReconstructsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvault.db")
	log, err := persist.Open(path)
	require.NoError(t, err)

	cfg := Config{Buckets: 4, AdminName: "admin", MRUCapacity: 8, UploadMax: 1 << 20, DownloadMax: 1 << 20, RequestMax: 1 << 20, Window: time.Minute}
	s1 := New(cfg, log, newFakeMR(), zerolog.Nop())
	require.NoError(t, s1.AddUser("alice", "pw1"))
	require.NoError(t, s1.SetUserData("alice", "pw1", []byte("hello")))
	require.NoError(t, s1.KVInsert("alice", "pw1", "k", []byte("v1")))
	require.NoError(t, s1.Persist())
	_, err = s1.KVUpsert("alice", "pw1", "k", []byte("v2"))
	require.NoError(t, err)
	require.NoError(t, log.Close())

	s2 := New(cfg, nil, newFakeMR(), zerolog.Nop())
	require.NoError(t, persist.Replay(path, s2))

	val, err := s2.KVGet("alice", "pw1", "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), val)

	data, err := s2.GetUserData("alice", "pw1", "alice")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
}

func TestByeAndSav(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddUser("alice", "pw1"))

	require.NoError(t, s.Bye("alice", "pw1"))
	require.ErrorIs(t, s.Bye("alice", "wrong"), ErrLogin)
	require.NoError(t, s.Sav("alice", "pw1"))
}
