// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want TransportErrorType
	}{
		{name: "nil", err: nil, want: TransportErrorUnknown},
		{name: "unavailable status", err: status.Error(codes.Unavailable, "connection error"), want: TransportErrorUnavailable},
		{name: "deadline status", err: status.Error(codes.DeadlineExceeded, "too slow"), want: TransportErrorTimeout},
		{name: "unauthenticated status", err: status.Error(codes.Unauthenticated, "no token"), want: TransportErrorAuth},
		{name: "internal status", err: status.Error(codes.Internal, "panic"), want: TransportErrorInternal},
		{name: "context canceled", err: fmt.Errorf("script: %w", context.Canceled), want: TransportErrorCanceled},
		{name: "context deadline", err: context.DeadlineExceeded, want: TransportErrorTimeout},
		{name: "plain reset", err: errors.New("read: connection reset by peer"), want: TransportErrorNetwork},
		{name: "plain other", err: errors.New("something odd"), want: TransportErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyTransportError(tt.err); got != tt.want {
				t.Errorf("ClassifyTransportError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatTransportError_MasksDetails(t *testing.T) {
	err := status.Error(codes.Unavailable, "dial postgres://admin:secret@db:5432/app")
	out := FormatTransportError(err)

	if strings.Contains(out, "secret") {
		t.Errorf("formatted error leaks credentials: %q", out)
	}
	if !strings.Contains(out, "not accepting requests") {
		t.Errorf("formatted error missing explanation: %q", out)
	}
	if FormatTransportError(nil) != "" {
		t.Error("FormatTransportError(nil) should be empty")
	}
}
