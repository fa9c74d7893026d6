package mapreduce

import (
	"bytes"
	"fmt"
	"os/exec"

	"github.com/dreamware/kvault/internal/mapreduce/plugin"
	"github.com/dreamware/kvault/internal/store"
)

// Executor shells out to the kvault-mr-child binary for both plugin
// validation and invocation, keeping plugin code out of the server's
// address space entirely (see doc.go for why).
type Executor struct {
	childPath string
}

// Validate execs `childPath -validate path` and reports whether the child
// could load the plugin and find both expected symbols. A non-zero exit
// (including the child binary itself failing to start) is treated as
// validation failure.
func (e *Executor) Validate(path string) error {
	cmd := exec.Command(e.childPath, "-validate", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("mapreduce: validating %s: %w: %s", path, err, stderr.String())
	}
	return nil
}

// Run execs `childPath -run path`, streams pairs to the child's stdin as
// WriteRecord-framed key/value pairs, closes the write end to signal EOF
// (Go has no SIGPIPE to ignore here — a write past a dead child simply
// returns an error), waits for the child to exit, and returns whatever it
// wrote to stdout.
//
// A non-zero exit or any pipe error is reported as a single opaque error;
// Table.Invoke collapses all of them to store.ErrServer, so a client only
// ever learns "the child died", never why.
func (e *Executor) Run(path string, pairs []store.KVPair) ([]byte, error) {
	cmd := exec.Command(e.childPath, "-run", path)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("mapreduce: opening child stdin: %w", err)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("mapreduce: starting child: %w", err)
	}

	writeErr := make(chan error, 1)
	go func() {
		for _, p := range pairs {
			if err := plugin.WriteRecord(stdin, p.Key, p.Value); err != nil {
				writeErr <- err
				_ = stdin.Close()
				return
			}
		}
		writeErr <- stdin.Close()
	}()

	werr := <-writeErr
	waitErr := cmd.Wait()
	if waitErr != nil {
		return nil, fmt.Errorf("mapreduce: child exited: %w: %s", waitErr, stderr.String())
	}
	if werr != nil {
		return nil, fmt.Errorf("mapreduce: streaming pairs to child: %w", werr)
	}

	return stdout.Bytes(), nil
}
