package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/simlattice/indexer/manager"
	"github.com/simlattice/indexer/svc"
)

// logPipelineStatus renders one line per service plus a pipeline-wide
// rollup, in the teacher's human-readable-log style: metric counts
// rendered with humanize.Comma rather than raw floats.
func logPipelineStatus(log logFunc, mgr *manager.Manager) {
	statuses := mgr.GetAllServiceStatus()
	for _, st := range statuses {
		log("service=%s state=%s healthy=%t %s", st.Name, st.State, st.Healthy, formatMetrics(st))
		for _, oe := range st.Errors {
			log("  service=%s recent_error kind=%s message=%q", st.Name, oe.ErrorType, oe.Message)
		}
	}
	log("pipeline status=%s services=%d", mgr.PipelineStatus(), len(statuses))
}

// logFunc abstracts the one *logrus.Logger.Infof call site this needs, so
// tests could swap in a recording func without pulling in logrus.
type logFunc func(format string, args ...interface{})

func formatMetrics(st svc.Status) string {
	if len(st.Metrics) == 0 {
		return "metrics={}"
	}
	keys := make([]string, 0, len(st.Metrics))
	for k := range st.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, humanize.Comma(int64(st.Metrics[k]))))
	}
	return "metrics{" + strings.Join(parts, " ") + "}"
}
