// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"gitlab.com/bitwire/core/corelog"
)

// log is a logger that is initialized with no output filters.  This
// means the package will not perform any logging by default until the caller
// requests it.
var log = corelog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger corelog.ILogger) {
	log = logger
}

// pickNoun returns the singular or plural form of a noun depending on the
// count n.
func pickNoun(n uint64, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
