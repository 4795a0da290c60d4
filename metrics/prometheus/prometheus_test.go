package prometheus

import (
	"strings"
	"testing"
	"time"

	"github.com/cschleiden/go-approvals/internal/metrickeys"
	"github.com/cschleiden/go-approvals/metrics"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func Test_MetricName(t *testing.T) {
	require.Equal(t, "approvals_task_created_total", metricName(metrickeys.TaskCreated, counterKind))
	require.Equal(t, "approvals_workflow_run_duration_seconds", metricName(metrickeys.RunDuration, timingKind))
	require.Equal(t, "approvals_sweeper_pending", metricName(metrickeys.SweepPendingTasks, gaugeKind))
}

func Test_Client_Counter(t *testing.T) {
	reg := promclient.NewRegistry()
	c := New(reg, nil)

	c.Counter(metrickeys.TaskFinished, metrics.Tags{metrickeys.Status: "completed"}, 1)
	c.Counter(metrickeys.TaskFinished, metrics.Tags{metrickeys.Status: "completed"}, 2)
	c.Counter(metrickeys.TaskFinished, metrics.Tags{metrickeys.Status: "failed"}, 1)

	expected := `
# HELP approvals_task_finished_total approvals task finished total
# TYPE approvals_task_finished_total counter
approvals_task_finished_total{status="completed"} 3
approvals_task_finished_total{status="failed"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "approvals_task_finished_total"))
}

func Test_Client_WithTags(t *testing.T) {
	reg := promclient.NewRegistry()
	c := New(reg, nil).WithTags(metrics.Tags{metrickeys.Backend: "sqlite"})

	c.Gauge(metrickeys.SweepPendingTasks, metrics.Tags{}, 4)

	expected := `
# HELP approvals_sweeper_pending approvals sweeper pending
# TYPE approvals_sweeper_pending gauge
approvals_sweeper_pending{backend="sqlite"} 4
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "approvals_sweeper_pending"))
}

func Test_Client_Timing(t *testing.T) {
	reg := promclient.NewRegistry()
	c := New(reg, nil)

	c.Timing(metrickeys.RunDuration, metrics.Tags{}, 250*time.Millisecond)
	c.Timing(metrickeys.RunDuration, metrics.Tags{}, time.Second)

	require.Equal(t, 1, testutil.CollectAndCount(c.c.histograms[vecKey("approvals_workflow_run_duration_seconds", promclient.Labels{})]))
}

func Test_Client_ConflictingLabelsAreReported(t *testing.T) {
	reg := promclient.NewRegistry()

	var errs []error
	c := New(reg, func(err error) { errs = append(errs, err) })

	c.Counter(metrickeys.NodeExecuted, metrics.Tags{metrickeys.Node: "analyze"}, 1)
	c.Counter(metrickeys.NodeExecuted, metrics.Tags{metrickeys.Status: "x"}, 1)

	require.Len(t, errs, 1)
}
