// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"context"
	"errors"
	"strings"

	"github.com/pterm/pterm"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TransportErrorType represents the category of a remote provider error
type TransportErrorType int

const (
	TransportErrorUnknown TransportErrorType = iota
	TransportErrorNetwork
	TransportErrorAuth
	TransportErrorTimeout
	TransportErrorInternal
	TransportErrorUnavailable
	TransportErrorCanceled
)

// ClassifyTransportError categorizes an error returned by a remote scripting host.
// gRPC status codes are preferred; plain errors fall back to message matching.
func ClassifyTransportError(err error) TransportErrorType {
	if err == nil {
		return TransportErrorUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TransportErrorTimeout
	}
	if errors.Is(err, context.Canceled) {
		return TransportErrorCanceled
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable:
			return TransportErrorUnavailable
		case codes.DeadlineExceeded:
			return TransportErrorTimeout
		case codes.Unauthenticated, codes.PermissionDenied:
			return TransportErrorAuth
		case codes.Internal, codes.DataLoss:
			return TransportErrorInternal
		case codes.Canceled:
			return TransportErrorCanceled
		}
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "rst_stream"), strings.Contains(lower, "connection reset"), strings.Contains(lower, "connection refused"):
		return TransportErrorNetwork
	case strings.Contains(lower, "deadline"), strings.Contains(lower, "timeout"):
		return TransportErrorTimeout
	}
	return TransportErrorUnknown
}

// FormatTransportError formats a remote provider error in a user-friendly way
func FormatTransportError(err error) string {
	if err == nil {
		return ""
	}

	var builder strings.Builder
	builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Scripting host unreachable"))
	builder.WriteString("\n\n")

	switch ClassifyTransportError(err) {
	case TransportErrorNetwork:
		builder.WriteString("The connection to the scripting host was interrupted.\n")
		builder.WriteString("Check that the host process is running and reachable.\n")
	case TransportErrorUnavailable:
		builder.WriteString("The scripting host is not accepting requests.\n")
		builder.WriteString("It may still be starting, or the configured address is wrong.\n")
	case TransportErrorTimeout:
		builder.WriteString("The scripting host did not answer in time.\n")
	case TransportErrorAuth:
		builder.WriteString("The scripting host rejected the request credentials.\n")
	case TransportErrorInternal:
		builder.WriteString("The scripting host failed while generating the script.\n")
	case TransportErrorCanceled:
		builder.WriteString("The scripting request was canceled.\n")
	default:
		builder.WriteString("The scripting request failed.\n")
	}

	builder.WriteString("\n")
	builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + Mask(err.Error())))
	return builder.String()
}
