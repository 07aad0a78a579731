package backend

import (
	"context"
	"net"
	"net/url"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"nil", nil, FailureNone},
		{"deadline", context.DeadlineExceeded, FailureTimeout},
		{"wrapped deadline", errors.Wrap(context.DeadlineExceeded, "posting turn"), FailureTimeout},
		{"url error carrying deadline", &url.Error{Op: "Post", URL: "http://x", Err: context.DeadlineExceeded}, FailureTimeout},
		{"backend status", &BackendError{Status: 500, Reason: "API error: 500"}, FailureBackend},
		{"backend envelope", &BackendError{Reason: "Conversation failed: nope"}, FailureBackend},
		{"malformed", &MalformedResponseError{Cause: errors.New("bad json")}, FailureMalformed},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, FailureTransport},
		{"url error", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("no such host")}, FailureTransport},
		{"plain", errors.New("nil pointer somewhere"), FailureInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}
