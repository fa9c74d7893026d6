package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dreamware/kvault/internal/kvcrypto"
	"github.com/dreamware/kvault/internal/mru"
	"github.com/dreamware/kvault/internal/persist"
	"github.com/dreamware/kvault/internal/quota"
	"github.com/dreamware/kvault/internal/shardmap"
)

// KVPair is one key/value entry handed to a map/reduce executor. It exists
// so internal/store never needs to import internal/mapreduce — the
// dependency runs the other way, through the MRFacility interface below.
type KVPair struct {
	Key   string
	Value []byte
}

// MRFacility is the subset of internal/mapreduce.Table + Executor that
// internal/store needs. Keeping it as a locally defined interface lets
// cmd/kvaultd wire the concrete mapreduce types in without store depending
// on mapreduce's os/exec-based implementation.
type MRFacility interface {
	// Register validates and records soBytes under name. It returns
	// ErrFuncExists on a name collision and ErrSOLoad if the plugin fails
	// to load or validate.
	Register(name string, soBytes []byte) error
	// Invoke runs name's map/reduce pair over pairs and returns the
	// reduced result. It returns ErrFuncMissing if name isn't registered
	// and ErrServer if the child process fails.
	Invoke(name string, pairs []KVPair) ([]byte, error)
}

type authEntry struct {
	password persist.PasswordField
	content  []byte
}

type quotaTriple struct {
	Request  *quota.Tracker
	Upload   *quota.Tracker
	Download *quota.Tracker
}

// Config bounds the resources a Store enforces. Window applies uniformly
// to all three quota classes — one accounting duration, not three.
type Config struct {
	Buckets     int
	AdminName   string
	MRUCapacity int
	UploadMax   int64
	DownloadMax int64
	RequestMax  int64
	Window      time.Duration
}

// Store is kvault's domain layer: the authentication table, the key/value
// table, per-user quotas, the shared MRU cache, and the persistence hook
// that makes a mutation durable before it is acknowledged.
type Store struct {
	cfg    Config
	auth   *shardmap.Map[authEntry]
	kv     *shardmap.Map[[]byte]
	mru    *mru.Cache
	log    *persist.Log
	mr     MRFacility
	logger zerolog.Logger

	quotaMu sync.Mutex
	quotas  map[string]*quotaTriple
}

// New constructs an empty Store. Callers that need to restore prior state
// should follow New with persist.Replay(path, store) before serving any
// connection — Store implements persist.Sink for exactly that purpose.
func New(cfg Config, log *persist.Log, mr MRFacility, logger zerolog.Logger) *Store {
	if cfg.Buckets < 1 {
		cfg.Buckets = 1
	}
	return &Store{
		cfg:    cfg,
		auth:   shardmap.New[authEntry](cfg.Buckets),
		kv:     shardmap.New[[]byte](cfg.Buckets),
		mru:    mru.NewCache(cfg.MRUCapacity),
		log:    log,
		mr:     mr,
		logger: logger,
		quotas: make(map[string]*quotaTriple),
	}
}

func (s *Store) ensureQuota(user string) *quotaTriple {
	s.quotaMu.Lock()
	defer s.quotaMu.Unlock()
	if t, ok := s.quotas[user]; ok {
		return t
	}
	t := &quotaTriple{
		Request:  quota.NewTracker(s.cfg.RequestMax, s.cfg.Window),
		Upload:   quota.NewTracker(s.cfg.UploadMax, s.cfg.Window),
		Download: quota.NewTracker(s.cfg.DownloadMax, s.cfg.Window),
	}
	s.quotas[user] = t
	return t
}

func (s *Store) quotaFor(user string) *quotaTriple {
	s.quotaMu.Lock()
	defer s.quotaMu.Unlock()
	return s.quotas[user]
}

func (s *Store) logPersistError(op string, err error) {
	if err == nil {
		return
	}
	s.logger.Error().Err(err).Str("op", op).Msg("incremental log append failed; continuing with in-memory state")
}

func verifyPassword(pass string, pf persist.PasswordField) bool {
	if len(pf.KDF) > 0 {
		return kvcrypto.VerifyPasswordKDF(pass, pf.KDF)
	}
	return kvcrypto.VerifyMD5Password(pass, pf.MD5)
}

// authenticate checks user/pass and never distinguishes "no such user"
// from "wrong password" in its returned error, so a failed login can't be
// used to enumerate registered usernames.
func (s *Store) authenticate(user, pass string) error {
	var ok bool
	found := s.auth.DoWithReadOnly(user, func(e authEntry) {
		ok = verifyPassword(pass, e.password)
	})
	if !found || !ok {
		return ErrLogin
	}
	return nil
}

// chargeRequest increments the request counter unconditionally (even if it
// turns out to be over budget) and reports whether the request itself
// stayed within quota — a rejected request still counts as a request.
func chargeRequest(tr *quotaTriple) error {
	allowed := tr.Request.Check(1)
	tr.Request.Add(1)
	if !allowed {
		return ErrQuotaReq
	}
	return nil
}

// AddUser registers a new user with an empty content blob. No
// authentication is required; only the target username must not already
// exist.
func (s *Store) AddUser(user, pass string) error {
	pf := persist.PasswordField{KDF: kvcrypto.HashPasswordKDF(pass)}
	var persistErr error
	ok := s.auth.Insert(user, authEntry{password: pf}, func() {
		s.ensureQuota(user)
		persistErr = s.log.Append(persist.EncodeAuthSnapshot(user, pf, nil))
	})
	if !ok {
		return ErrUserExists
	}
	s.logPersistError("add_user", persistErr)
	return nil
}

// SetUserData replaces user's own content blob.
func (s *Store) SetUserData(user, pass string, content []byte) error {
	if err := s.authenticate(user, pass); err != nil {
		return err
	}
	tr := s.quotaFor(user)
	if !tr.Upload.Check(int64(len(content))) {
		return ErrQuotaUp
	}

	var persistErr error
	found := s.auth.DoWith(user, func(e *authEntry) {
		e.content = append([]byte(nil), content...)
		persistErr = s.log.Append(persist.EncodeAuthDiff(user, content))
	})
	if !found {
		return ErrNoUser
	}
	s.logPersistError("set_user_data", persistErr)
	tr.Upload.Add(int64(len(content)))
	return nil
}

// GetUserData returns who's content blob. The download quota is charged
// against the blob's actual size, which is only known once the blob has
// been read — so the quota check necessarily follows the lookup here
// rather than preceding it as it does for fixed-cost operations.
func (s *Store) GetUserData(user, pass, who string) ([]byte, error) {
	if err := s.authenticate(user, pass); err != nil {
		return nil, err
	}

	var content []byte
	found := s.auth.DoWithReadOnly(who, func(e authEntry) {
		content = append([]byte(nil), e.content...)
	})
	if !found {
		return nil, ErrNoUser
	}
	if len(content) == 0 {
		return nil, ErrNoData
	}

	tr := s.quotaFor(user)
	if !tr.Download.Check(int64(len(content))) {
		return nil, ErrQuotaDown
	}
	tr.Download.Add(int64(len(content)))
	return content, nil
}

// GetAllUsers returns a newline-separated listing of every registered
// username.
func (s *Store) GetAllUsers(user, pass string) ([]byte, error) {
	if err := s.authenticate(user, pass); err != nil {
		return nil, err
	}
	payload := []byte(strings.Join(s.auth.Keys(), "\n"))

	tr := s.quotaFor(user)
	if !tr.Download.Check(int64(len(payload))) {
		return nil, ErrQuotaDown
	}
	tr.Download.Add(int64(len(payload)))
	return payload, nil
}

// KVInsert inserts key/value only if key is not already present.
func (s *Store) KVInsert(user, pass, key string, value []byte) error {
	if err := s.authenticate(user, pass); err != nil {
		return err
	}
	tr := s.quotaFor(user)
	if err := chargeRequest(tr); err != nil {
		return err
	}
	if !tr.Upload.Check(int64(len(value))) {
		return ErrQuotaUp
	}

	var persistErr error
	ok := s.kv.Insert(key, append([]byte(nil), value...), func() {
		persistErr = s.log.Append(persist.EncodeKVUpdate(key, value))
	})
	if !ok {
		return ErrKey
	}
	s.logPersistError("kv_insert", persistErr)
	s.mru.Insert(key)
	tr.Upload.Add(int64(len(value)))
	return nil
}

// KVUpsert inserts key/value if absent or replaces it if present. inserted
// reports which of the two happened, so the caller can distinguish
// OK_INSERT from OK_UPDATE.
func (s *Store) KVUpsert(user, pass, key string, value []byte) (inserted bool, err error) {
	if err := s.authenticate(user, pass); err != nil {
		return false, err
	}
	tr := s.quotaFor(user)
	if err := chargeRequest(tr); err != nil {
		return false, err
	}
	if !tr.Upload.Check(int64(len(value))) {
		return false, ErrQuotaUp
	}

	var persistErr error
	appendLog := func() { persistErr = s.log.Append(persist.EncodeKVUpdate(key, value)) }
	wasInsert := s.kv.Upsert(key, append([]byte(nil), value...), appendLog, appendLog)
	s.logPersistError("kv_upsert", persistErr)
	s.mru.Insert(key)
	tr.Upload.Add(int64(len(value)))
	return wasInsert, nil
}

// KVGet returns key's current value.
func (s *Store) KVGet(user, pass, key string) ([]byte, error) {
	if err := s.authenticate(user, pass); err != nil {
		return nil, err
	}
	tr := s.quotaFor(user)
	if err := chargeRequest(tr); err != nil {
		return nil, err
	}

	var value []byte
	found := s.kv.DoWithReadOnly(key, func(v []byte) {
		value = append([]byte(nil), v...)
	})
	if !found {
		return nil, ErrKey
	}
	if !tr.Download.Check(int64(len(value))) {
		return nil, ErrQuotaDown
	}
	tr.Download.Add(int64(len(value)))
	return value, nil
}

// KVDelete removes key, also dropping it from the MRU cache so a deleted
// key never lingers in a kv_top listing.
func (s *Store) KVDelete(user, pass, key string) error {
	if err := s.authenticate(user, pass); err != nil {
		return err
	}
	tr := s.quotaFor(user)
	if err := chargeRequest(tr); err != nil {
		return err
	}

	var persistErr error
	ok := s.kv.Remove(key, func() {
		persistErr = s.log.Append(persist.EncodeKVDelete(key))
	})
	if !ok {
		return ErrKey
	}
	s.logPersistError("kv_delete", persistErr)
	s.mru.Remove(key)
	return nil
}

// KVAll returns a newline-separated listing of every stored key.
func (s *Store) KVAll(user, pass string) ([]byte, error) {
	if err := s.authenticate(user, pass); err != nil {
		return nil, err
	}
	tr := s.quotaFor(user)
	if err := chargeRequest(tr); err != nil {
		return nil, err
	}

	payload := []byte(strings.Join(s.kv.Keys(), "\n"))
	if !tr.Download.Check(int64(len(payload))) {
		return nil, ErrQuotaDown
	}
	tr.Download.Add(int64(len(payload)))
	return payload, nil
}

// KVTop returns the MRU listing, most-recently-touched first.
func (s *Store) KVTop(user, pass string) ([]byte, error) {
	if err := s.authenticate(user, pass); err != nil {
		return nil, err
	}
	tr := s.quotaFor(user)
	if err := chargeRequest(tr); err != nil {
		return nil, err
	}

	payload := []byte(s.mru.String())
	if !tr.Download.Check(int64(len(payload))) {
		return nil, ErrQuotaDown
	}
	tr.Download.Add(int64(len(payload)))
	return payload, nil
}

// Persist writes a consistent full snapshot and atomically replaces the
// backing file. It does not authenticate a caller — Sav does that and then
// calls Persist.
//
// Both maps are held under two-phase locking for the whole rewrite, with
// the file swap happening inside the innermost finalize hook. Holding
// every bucket lock before touching the log keeps the lock order
// consistent with the mutators (bucket lock, then log) and guarantees no
// mutation, in memory or on disk, can interleave with the snapshot.
func (s *Store) Persist() error {
	var buf []byte
	var err error
	s.auth.DoAllReadOnly(func(key string, e authEntry) {
		buf = append(buf, persist.EncodeAuthSnapshot(key, e.password, e.content)...)
	}, func() {
		s.kv.DoAllReadOnly(func(key string, v []byte) {
			buf = append(buf, persist.EncodeKVSnapshot(key, v)...)
		}, func() {
			err = s.log.Snapshot(buf)
		})
	})
	return err
}

// Sav authenticates and then triggers Persist.
func (s *Store) Sav(user, pass string) error {
	if err := s.authenticate(user, pass); err != nil {
		return err
	}
	return s.Persist()
}

// Bye authenticates the caller. Acting on a successful Bye — acknowledging
// the client and then halting the server — is the session layer's and
// cmd/kvaultd's responsibility, since Store has no reference to the
// accept loop.
func (s *Store) Bye(user, pass string) error {
	return s.authenticate(user, pass)
}

// RegisterMR validates and records a map/reduce plugin under name. Only the
// configured admin user may call this.
func (s *Store) RegisterMR(user, pass, name string, soBytes []byte) error {
	if err := s.authenticate(user, pass); err != nil {
		return err
	}
	if user != s.cfg.AdminName {
		return ErrNotAdmin
	}
	return s.mr.Register(name, soBytes)
}

// InvokeMR runs name's registered map/reduce pair over every stored KV
// pair and returns the reduced result.
func (s *Store) InvokeMR(user, pass, name string) ([]byte, error) {
	if err := s.authenticate(user, pass); err != nil {
		return nil, err
	}

	var pairs []KVPair
	s.kv.DoAllReadOnly(func(key string, value []byte) {
		pairs = append(pairs, KVPair{Key: key, Value: append([]byte(nil), value...)})
	}, nil)

	return s.mr.Invoke(name, pairs)
}

// --- persist.Sink implementation, used to replay a log file at startup ---

// CreateUser implements persist.Sink by inserting an auth record without
// appending a further log entry (the record being replayed already is the
// log entry).
func (s *Store) CreateUser(username string, password persist.PasswordField, content []byte) error {
	ok := s.auth.Insert(username, authEntry{password: password, content: content}, func() {
		s.ensureQuota(username)
	})
	if !ok {
		return fmt.Errorf("store: replay: user %q already exists", username)
	}
	return nil
}

// ReplaceUserContent implements persist.Sink for AUTHDIFF records.
func (s *Store) ReplaceUserContent(username string, content []byte) error {
	found := s.auth.DoWith(username, func(e *authEntry) {
		e.content = content
	})
	if !found {
		return fmt.Errorf("store: replay: no such user %q", username)
	}
	return nil
}

// UpsertKV implements persist.Sink for KVKVKVKV/KVUPDATE records. It also
// replays the key's touch into the MRU cache, since the persisted history
// is the closest available reconstruction of true touch order.
func (s *Store) UpsertKV(key string, value []byte) error {
	s.kv.Upsert(key, value, nil, nil)
	s.mru.Insert(key)
	return nil
}

// DeleteKV implements persist.Sink for KVDELETE records.
func (s *Store) DeleteKV(key string) error {
	ok := s.kv.Remove(key, nil)
	if !ok {
		return fmt.Errorf("store: replay: no such key %q", key)
	}
	s.mru.Remove(key)
	return nil
}
