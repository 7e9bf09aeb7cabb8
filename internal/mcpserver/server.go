package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"beadloom/internal/logging"
)

// Serve runs the stdio tool loop: one JSON Request per line of in, one
// JSON Response per line of out, until in is exhausted or ctx is done.
// A malformed line or an unknown tool produces an error Response rather
// than terminating the loop, so one bad request never kills the session.
func Serve(ctx context.Context, srv *Server, in io.Reader, out io.Writer) error {
	log := logging.Get(logging.CategoryMCP)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			if encErr := enc.Encode(Response{Error: "invalid request: " + err.Error()}); encErr != nil {
				return encErr
			}
			continue
		}

		result, err := srv.Dispatch(ctx, req.Tool, req.Args)
		resp := Response{ID: req.ID}
		if err != nil {
			log.Warn("tool %s failed: %v", req.Tool, err)
			resp.Error = err.Error()
		} else {
			resp.Result = result
		}
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}
