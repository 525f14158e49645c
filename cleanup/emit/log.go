package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter implements Emitter by writing structured log output to a
// writer.
//
// Supports two output modes:
//   - Text mode (default): human-readable key=value pairs.
//   - JSON mode: one JSON object per line (JSONL).
//
// Example text output:
//
//	[task_deleted] runID=run-001 task=4 process=align path=/work/9f/86d081
//
// Example JSON output:
//
//	{"runID":"run-001","taskID":4,"process":"align","path":"/work/9f/86d081","msg":"task_deleted","meta":null}
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter writing to the given writer. A nil
// writer defaults to os.Stdout. When jsonMode is true, events are written
// as JSONL instead of text.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// Emit writes one event to the configured writer.
func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		RunID   string                 `json:"runID"`
		TaskID  int64                  `json:"taskID"`
		Process string                 `json:"process"`
		Path    string                 `json:"path"`
		Msg     string                 `json:"msg"`
		Meta    map[string]interface{} `json:"meta"`
	}{
		RunID:   event.RunID,
		TaskID:  event.TaskID,
		Process: event.Process,
		Path:    event.Path,
		Msg:     event.Msg,
		Meta:    event.Meta,
	})
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	_, _ = fmt.Fprintf(l.writer, "[%s] runID=%s task=%d process=%s",
		event.Msg, event.RunID, event.TaskID, event.Process)

	if event.Path != "" {
		_, _ = fmt.Fprintf(l.writer, " path=%s", event.Path)
	}

	if len(event.Meta) > 0 {
		metaJSON, err := json.Marshal(event.Meta)
		if err == nil {
			_, _ = fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			_, _ = fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}

	_, _ = fmt.Fprint(l.writer, "\n")
}

// EmitBatch writes all events in order. In JSON mode the batch is written
// as JSONL; in text mode, one line per event. Returns nil; write errors
// are swallowed like in Emit, because the engine cannot act on them.
func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		l.Emit(event)
	}
	return nil
}

// Flush is a no-op: LogEmitter writes directly to the underlying writer
// and keeps no buffer of its own. Wrap the writer with bufio.Writer and
// flush that directly if buffered output is desired.
func (l *LogEmitter) Flush(_ context.Context) error {
	return nil
}
