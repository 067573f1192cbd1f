// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import "fmt"

const noticeIndent = "         "

func attachedNotice(command, seedHex string) string {
	return fmt.Sprintf("[tether] Attached. To connect run:\n%s%s %s\n", noticeIndent, command, seedHex)
}

func devtoolsNotice(command, seedHex, debugAddress string) string {
	return fmt.Sprintf("[tether] Devtools channel ready. To connect run:\n"+
		"%s%s %s --devtools\n"+
		"%sThen point go tool pprof at http://%s/debug/pprof/\n",
		noticeIndent, command, seedHex,
		noticeIndent, debugAddress)
}
