// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package debug provides a gated trace logger for the wire-level protocol
// machinery (chunker, secure channel, transport). It is intentionally
// separate from the server's structured operational logger: this package
// is for byte-level debugging of a single connection, not for operational
// observability.
package debug

import (
	"fmt"
	"log"
	"os"
)

// Enable turns on trace logging of chunk and handshake traffic. Disabled by
// default since it is extremely verbose.
var Enable = os.Getenv("OPCUA_DEBUG") != ""

var logger = log.New(os.Stderr, "[opcua] ", log.LstdFlags|log.Lmicroseconds)

// Printf logs a formatted trace message when Enable is true.
func Printf(format string, v ...interface{}) {
	if !Enable {
		return
	}
	logger.Output(2, fmt.Sprintf(format, v...))
}

// Dump logs a byte slice as hex when Enable is true.
func Dump(label string, b []byte) {
	if !Enable {
		return
	}
	logger.Output(2, fmt.Sprintf("%s: % x", label, b))
}
