package channel

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/reloved/flutter-openwrap-sdk/internal/config"
	"github.com/reloved/flutter-openwrap-sdk/internal/metrics"
	"github.com/reloved/flutter-openwrap-sdk/pkg/logger"
)

// inboundFrame is one line read from the application layer
type inboundFrame struct {
	ID        json.RawMessage `json:"id"`
	Method    string          `json:"method"`
	Arguments any             `json:"arguments"`
}

// StdioTransport serves the method channel over newline-delimited JSON.
//
// Inbound:  {"id":1,"method":"initBannerAd","arguments":{...}}
// Replies:  {"id":1,"result":...} | {"id":1,"error":{...}} | {"id":1,"notImplemented":true}
// Outward:  {"method":"onAdReceived","arguments":{"adId":7}}
//
// Dropped calls get no reply line. Calls are handled one at a time.
type StdioTransport struct {
	reader  io.Reader
	writer  io.Writer
	handler Handler
	metrics *metrics.Metrics

	writeMu sync.Mutex
}

// NewStdioTransport creates a stdio transport. Typically reader is os.Stdin and writer is os.Stdout.
func NewStdioTransport(reader io.Reader, writer io.Writer, handler Handler, m *metrics.Metrics) *StdioTransport {
	return &StdioTransport{
		reader:  reader,
		writer:  writer,
		handler: handler,
		metrics: m,
	}
}

// Deliver writes one outward event. It implements Sink.
func (t *StdioTransport) Deliver(ev Event) error {
	args := ev.Arguments
	if args == nil {
		args = map[string]any{}
	}
	return t.writeFrame(map[string]any{"method": ev.Method, "arguments": args})
}

// Serve reads calls until EOF, a read error or ctx cancellation.
// Malformed lines are logged and skipped.
func (t *StdioTransport) Serve(ctx context.Context) error {
	log := logger.Channel()
	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(t.reader)
		scanner.Buffer(make([]byte, 0, 64*1024), config.MaxFrameSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				err = fmt.Errorf("frame exceeded %d byte limit: %w", config.MaxFrameSize, err)
			}
			scanErr <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if len(line) == 0 {
				continue
			}
			if err := t.handleLine(ctx, line); err != nil {
				log.Warn().Err(err).Msg("Failed to handle inbound frame")
			}
		}
	}
}

func (t *StdioTransport) handleLine(ctx context.Context, line []byte) error {
	var frame inboundFrame
	if err := json.Unmarshal(line, &frame); err != nil {
		return fmt.Errorf("invalid frame: %w", err)
	}
	if frame.Method == "" {
		return errors.New("frame has no method")
	}

	callCtx := logger.WithCallID(ctx, string(frame.ID))
	call := &MethodCall{Method: frame.Method, Arguments: frame.Arguments}
	reply := Invoke(callCtx, t.handler, call, t.metrics)

	if reply.Dropped {
		return nil
	}
	id := frame.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}

	out := map[string]any{"id": id}
	switch {
	case reply.NotImplemented:
		out["notImplemented"] = true
	case reply.Error != nil:
		out["error"] = reply.Error
	default:
		out["result"] = reply.Result
	}
	return t.writeFrame(out)
}

func (t *StdioTransport) writeFrame(frame map[string]any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	data = append(data, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	for len(data) > 0 {
		n, err := t.writer.Write(data)
		if err != nil {
			return fmt.Errorf("failed to write frame: %w", err)
		}
		if n == 0 {
			return errors.New("writer returned zero bytes written without error")
		}
		data = data[n:]
	}
	return nil
}
