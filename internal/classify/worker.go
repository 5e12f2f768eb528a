package classify

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ironsheep/omr-reader/internal/imaging"
)

// readyFrame is the handshake a model worker writes once its model loaded.
const readyFrame = "READY"

// DefaultWorkerCommand is the model worker looked up on PATH when none is
// configured.
const DefaultWorkerCommand = "omr-model-worker"

// DefaultStartupTimeout bounds how long a worker may take to load its model.
const DefaultStartupTimeout = 30 * time.Second

// ModelWorker runs a fill model in a subprocess.
//
// Requests go to the worker's stdin and responses come back on a dedicated
// pipe that the worker sees as file descriptor 3, so stray prints on its
// stdout cannot corrupt the protocol. Every message is framed as
// [uint32 big-endian length][payload].
//
// Request payload:  [uint32 N][uint32 H][uint32 W][N*H*W float32]
// Response payload: [uint32 N][N float32]
//
// A ModelWorker is safe for concurrent use; calls are serialized.
type ModelWorker struct {
	Path     string
	Cmd      *exec.Cmd
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser

	mu sync.Mutex
}

// StartModelWorker launches command with the model path appended as the
// last argument and waits up to timeout for the worker's ready frame. A
// worker that misses the deadline is killed. A non-positive timeout selects
// DefaultStartupTimeout.
func StartModelWorker(command []string, modelPath string, timeout time.Duration) (*ModelWorker, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("no model worker command configured")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	args := append(append([]string(nil), command[1:]...), modelPath)
	cmd := exec.Command(command[0], args...)
	cmd.Stderr = os.Stderr

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("model worker failed to start: %w", err)
	}
	// Only the child holds the write end now.
	w.Close()

	worker := &ModelWorker{Path: modelPath, Cmd: cmd, Stdin: stdin, DataPipe: r}
	if timeout <= 0 {
		timeout = DefaultStartupTimeout
	}
	if err := worker.awaitReady(timeout); err != nil {
		cmd.Process.Kill()
		worker.Close()
		return nil, err
	}
	return worker, nil
}

func (w *ModelWorker) awaitReady(timeout time.Duration) error {
	type handshake struct {
		frame []byte
		err   error
	}
	done := make(chan handshake, 1)
	go func() {
		frame, err := readFrame(w.DataPipe)
		done <- handshake{frame, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case h := <-done:
		if h.err != nil {
			return fmt.Errorf("model worker did not become ready: %w", h.err)
		}
		if string(h.frame) != readyFrame {
			return fmt.Errorf("model worker sent unexpected handshake %q", h.frame)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("model worker not ready after %s", timeout)
	}
}

// Name implements Backend.
func (w *ModelWorker) Name() string { return "learned" }

// Predict implements Backend. All patches must share one size.
func (w *ModelWorker) Predict(patches []imaging.Patch) ([]float64, error) {
	if len(patches) == 0 {
		return []float64{}, nil
	}
	req, err := encodeBatch(patches)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	resp, err := w.communicate(req)
	w.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("model worker: %w", err)
	}

	probs, err := decodeProbabilities(resp)
	if err != nil {
		return nil, err
	}
	if len(probs) != len(patches) {
		return nil, fmt.Errorf("model worker returned %d probabilities for %d patches", len(probs), len(patches))
	}
	return probs, nil
}

func (w *ModelWorker) communicate(data []byte) ([]byte, error) {
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}
	return readFrame(w.DataPipe)
}

// Close stops the worker. Closing stdin signals the worker to exit.
func (w *ModelWorker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd != nil {
		return w.Cmd.Wait()
	}
	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	body := make([]byte, binary.BigEndian.Uint32(header))
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

func encodeBatch(patches []imaging.Patch) ([]byte, error) {
	size := patches[0].Size
	buf := new(bytes.Buffer)
	buf.Grow(12 + 4*len(patches)*size*size)

	header := [3]uint32{uint32(len(patches)), uint32(size), uint32(size)}
	if err := binary.Write(buf, binary.BigEndian, header); err != nil {
		return nil, err
	}
	for i, p := range patches {
		if p.Size != size {
			return nil, fmt.Errorf("patch %d has size %d, want %d", i, p.Size, size)
		}
		for _, v := range p.Pix {
			if err := binary.Write(buf, binary.BigEndian, float32(v)); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}

func decodeProbabilities(data []byte) ([]float64, error) {
	r := bytes.NewReader(data)
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, fmt.Errorf("malformed model response: %w", err)
	}
	if uint64(r.Len()) != 4*uint64(n) {
		return nil, fmt.Errorf("malformed model response: %d bytes for %d probabilities", r.Len(), n)
	}

	raw := make([]float32, n)
	if err := binary.Read(r, binary.BigEndian, raw); err != nil {
		return nil, fmt.Errorf("malformed model response: %w", err)
	}
	probs := make([]float64, n)
	for i, v := range raw {
		if math.IsNaN(float64(v)) {
			return nil, fmt.Errorf("model returned NaN for patch %d", i)
		}
		probs[i] = clamp01(float64(v))
	}
	return probs, nil
}
