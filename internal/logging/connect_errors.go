// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pterm/pterm"
)

// ConnectErrorType is the category of a failed database connection attempt.
type ConnectErrorType int

const (
	ConnectErrorUnknown ConnectErrorType = iota
	ConnectErrorTimeout
	ConnectErrorDNS
	ConnectErrorRefused
	ConnectErrorTLS
	ConnectErrorAuth
	ConnectErrorNoDatabase
)

// ClassifyConnectError categorizes an error returned while verifying a connection.
func ClassifyConnectError(err error) ConnectErrorType {
	if err == nil {
		return ConnectErrorUnknown
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28P01", "28000":
			return ConnectErrorAuth
		case "3D000":
			return ConnectErrorNoDatabase
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ConnectErrorTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ConnectErrorDNS
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return ConnectErrorRefused
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "password authentication failed"):
		return ConnectErrorAuth
	case strings.Contains(lower, "connection refused"):
		return ConnectErrorRefused
	case strings.Contains(lower, "no such host"):
		return ConnectErrorDNS
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline exceeded"):
		return ConnectErrorTimeout
	case strings.Contains(lower, "tls"), strings.Contains(lower, "ssl"), strings.Contains(lower, "certificate"):
		return ConnectErrorTLS
	}
	return ConnectErrorUnknown
}

// FormatConnectError explains a failed connection to target with troubleshooting hints.
// Secrets in the error text are masked.
func FormatConnectError(err error, target string) string {
	if err == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Could not connect to " + target))
	b.WriteString("\n\n")

	switch ClassifyConnectError(err) {
	case ConnectErrorTimeout:
		b.WriteString("The database did not answer in time.\n")
		b.WriteString("Check the host and port, and any firewall between you and the server.\n")
	case ConnectErrorDNS:
		b.WriteString("The database host name could not be resolved.\n")
		b.WriteString("Check the host part of the DSN.\n")
	case ConnectErrorRefused:
		b.WriteString("The server refused the connection.\n")
		b.WriteString("Check that the database is running and listening on that port.\n")
	case ConnectErrorTLS:
		b.WriteString("The TLS handshake failed.\n")
		b.WriteString("Try sslmode=require or sslmode=disable to match the server.\n")
	case ConnectErrorAuth:
		b.WriteString("The server rejected the user name or password.\n")
	case ConnectErrorNoDatabase:
		b.WriteString("The database named in the DSN does not exist.\n")
	default:
		b.WriteString("The connection could not be verified.\n")
	}

	b.WriteString("\n")
	b.WriteString(pterm.Gray("Details: " + Mask(err.Error())))
	return b.String()
}
