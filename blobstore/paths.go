package blobstore

import (
	"fmt"
	"strings"

	"github.com/simlattice/indexer/simtypes"
)

// Path-keying scheme: every object lives under runs/<runId>/..., giving
// listRunIds(since) a stable ListObjectsV2 prefix+delimiter query (list the
// "directories" one level under runs/) without a side index.
const runsPrefix = "runs/"

func batchKey(runID simtypes.RunID, tickStart, tickEnd int64) string {
	return fmt.Sprintf("%s%s/batch/%020d-%020d.json", runsPrefix, runID, tickStart, tickEnd)
}

func messageKey(runID simtypes.RunID, name string) string {
	return fmt.Sprintf("%s%s/message/%s.json", runsPrefix, runID, name)
}

// runIDFromPrefix extracts the run id segment from a "runs/<runId>/"
// common-prefix entry returned by a delimited ListObjectsV2 call.
func runIDFromPrefix(prefix string) (simtypes.RunID, bool) {
	trimmed := strings.TrimPrefix(prefix, runsPrefix)
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" || trimmed == prefix {
		return "", false
	}
	return simtypes.RunID(trimmed), true
}
