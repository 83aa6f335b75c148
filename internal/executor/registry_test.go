package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	Register("executor-test-echo", func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return args, nil
	})

	fn, err := lookup("executor-test-echo")
	require.NoError(t, err)

	out, err := fn(context.Background(), json.RawMessage(`"payload"`))
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"payload"`), out)
}

func TestLookupUnknownName(t *testing.T) {
	_, err := lookup("executor-test-does-not-exist")
	require.Error(t, err)
}

// TestRunWorkerRoundTrip drives RunWorker over an in-memory newline-JSON
// stream, mirroring how the process backend's re-exec'd subprocess talks to
// its parent over stdin/stdout.
func TestRunWorkerRoundTrip(t *testing.T) {
	Register("executor-test-double", func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var n int
		if err := json.Unmarshal(args, &n); err != nil {
			return nil, err
		}
		return json.Marshal(n * 2)
	})
	Register("executor-test-fails", func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("deliberate failure")
	})

	var requests = []wireRequest{
		{ID: "1", Name: "executor-test-double", Args: json.RawMessage(`21`)},
		{ID: "2", Name: "executor-test-fails", Args: json.RawMessage(`null`)},
		{ID: "3", Name: "executor-test-missing", Args: json.RawMessage(`null`)},
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range requests {
		require.NoError(t, enc.Encode(r))
	}

	dec := json.NewDecoder(&buf)
	var responses []wireResponse

	decode := func(v any) error { return dec.Decode(v) }
	var outBuf bytes.Buffer
	outEnc := json.NewEncoder(&outBuf)
	encode := func(v any) error { return outEnc.Encode(v) }

	err := RunWorker(context.Background(), decode, encode)
	require.NoError(t, err)

	outDec := json.NewDecoder(&outBuf)
	for {
		var resp wireResponse
		if err := outDec.Decode(&resp); err != nil {
			break
		}
		responses = append(responses, resp)
	}

	require.Len(t, responses, 3)
	assert.Equal(t, "1", responses[0].ID)
	assert.Equal(t, json.RawMessage("42"), responses[0].Output)
	assert.Equal(t, "2", responses[1].ID)
	assert.Equal(t, "deliberate failure", responses[1].Err)
	assert.Equal(t, "3", responses[2].ID)
	assert.Contains(t, responses[2].Err, "no registered process task")
}
