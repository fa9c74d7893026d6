package persist

import (
	"fmt"
	"os"

	"github.com/dreamware/kvault/internal/wire"
)

// Sink receives the effect of each record encountered during replay. All
// four methods must return an error for a record that is semantically
// invalid (AUTHDIFF/KVDELETE against a record that doesn't exist) — replay
// aborts on the first such error and the server refuses to start on a
// file it cannot fully trust.
type Sink interface {
	CreateUser(username string, password PasswordField, content []byte) error
	ReplaceUserContent(username string, content []byte) error
	UpsertKV(key string, value []byte) error
	DeleteKV(key string) error
}

// Replay reads path sequentially and dispatches each record to sink. A
// nonexistent file is not an error — the caller is expected to create an
// empty one via Open. A structurally malformed record (declared length
// overruns the remaining bytes) is reported as an error and replay stops,
// since the file cannot be trusted beyond that point.
func Replay(path string, sink Sink) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("persist: reading log file: %w", err)
	}

	for len(data) > 0 {
		if len(data) < magicLen {
			return fmt.Errorf("persist: truncated record magic at end of file")
		}
		magic := string(data[:magicLen])
		data = data[magicLen:]

		var err error
		data, err = dispatch(magic, data, sink)
		if err != nil {
			return fmt.Errorf("persist: replaying %s record: %w", magic, err)
		}
	}
	return nil
}

func dispatch(magic string, data []byte, sink Sink) ([]byte, error) {
	switch magic {
	case MagicAuthSnapshot:
		username, rest, err := wire.TakeString(data)
		if err != nil {
			return nil, err
		}
		pwField, rest, err := wire.TakeString(rest)
		if err != nil {
			return nil, err
		}
		content, rest, err := wire.TakeString(rest)
		if err != nil {
			return nil, err
		}
		pf, err := DecodePasswordField(pwField)
		if err != nil {
			return nil, err
		}
		if err := sink.CreateUser(string(username), pf, content); err != nil {
			return nil, err
		}
		return rest, nil

	case MagicKVSnapshot, MagicKVUpdate:
		key, rest, err := wire.TakeString(data)
		if err != nil {
			return nil, err
		}
		value, rest, err := wire.TakeString(rest)
		if err != nil {
			return nil, err
		}
		if err := sink.UpsertKV(string(key), value); err != nil {
			return nil, err
		}
		return rest, nil

	case MagicAuthDiff:
		username, rest, err := wire.TakeString(data)
		if err != nil {
			return nil, err
		}
		content, rest, err := wire.TakeString(rest)
		if err != nil {
			return nil, err
		}
		if err := sink.ReplaceUserContent(string(username), content); err != nil {
			return nil, err
		}
		return rest, nil

	case MagicKVDelete:
		key, rest, err := wire.TakeString(data)
		if err != nil {
			return nil, err
		}
		if err := sink.DeleteKV(string(key)); err != nil {
			return nil, err
		}
		return rest, nil

	default:
		return nil, fmt.Errorf("persist: unrecognized magic %q", magic)
	}
}
