package scaleprobe

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/memebattle/scaleprobe/internal/broker"
	"github.com/memebattle/scaleprobe/internal/common/util"
	"github.com/memebattle/scaleprobe/internal/fleet"
	"github.com/memebattle/scaleprobe/internal/loadgen"
	"github.com/memebattle/scaleprobe/internal/monitor"
	"github.com/memebattle/scaleprobe/internal/purge"
)

const (
	notAvailable  = "N/A"
	clearScreen   = "\033[H\033[2J"
	clearInterval = 5
)

// renderer writes results for the operator. Implementations are not safe for concurrent use.
type renderer interface {
	CycleReport(report *loadgen.CycleReport) error
	Sample(sample monitor.Sample) error
	PurgeResult(result purge.Result) error
}

func newRenderer(output string, out io.Writer, stream string) renderer {
	switch output {
	case OutputJson:
		return &jsonRenderer{encoder: json.NewEncoder(out)}
	case OutputYaml:
		return &yamlRenderer{out: out}
	default:
		return &textRenderer{out: out, stream: stream}
	}
}

type jsonRenderer struct {
	encoder *json.Encoder
}

func (r *jsonRenderer) CycleReport(report *loadgen.CycleReport) error {
	return errors.WithStack(r.encoder.Encode(report))
}

func (r *jsonRenderer) Sample(sample monitor.Sample) error {
	return errors.WithStack(r.encoder.Encode(sample))
}

func (r *jsonRenderer) PurgeResult(result purge.Result) error {
	return errors.WithStack(r.encoder.Encode(result))
}

// yamlRenderer writes each value as its own YAML document.
type yamlRenderer struct {
	out io.Writer
}

func (r *yamlRenderer) write(v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := fmt.Fprintf(r.out, "---\n%s", data); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (r *yamlRenderer) CycleReport(report *loadgen.CycleReport) error {
	return r.write(report)
}

func (r *yamlRenderer) Sample(sample monitor.Sample) error {
	return r.write(sample)
}

func (r *yamlRenderer) PurgeResult(result purge.Result) error {
	return r.write(result)
}

var (
	bold   = color.New(color.Bold).SprintFunc()
	header = color.New(color.Bold, color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

type textRenderer struct {
	out     io.Writer
	stream  string
	samples int
}

func (r *textRenderer) write(s string) error {
	_, err := io.WriteString(r.out, s)
	return errors.WithStack(err)
}

func (r *textRenderer) CycleReport(report *loadgen.CycleReport) error {
	sb := newBuilder()
	sb.Section(header(fmt.Sprintf("===== Cycle #%d summary (%s) =====", report.CycleId, report.Timestamp.Format(time.RFC3339))))
	sb.Writef("  Messages sent:\t%d/%d\n", report.MessagesSent, report.MessagesAttempted)
	sb.Writef("  Pods before:\t%d\n", report.Before.Fleet.PodCount)
	sb.Writef("  Pods after:\t%s\n", green(report.After.Fleet.PodCount))
	sb.Writef("  Pending before:\t%s\n", optional(report.Before.Consumer.Pending))
	sb.Writef("  Pending after:\t%s\n", yellow(optional(report.After.Consumer.Pending)))
	if report.Scaled {
		sb.Writef("  Scaled:\t%s\n", green(fmt.Sprintf("yes, %d -> %d pods", report.Before.Fleet.PodCount, report.After.Fleet.PodCount)))
	} else {
		sb.Writef("  Scaled:\t%s\n", "no")
	}
	pause := "short"
	if report.ExtendedPause {
		pause = "extended"
	}
	sb.Writef("  Next pause:\t%s (%s)\n", report.NextPause, pause)
	if report.Scaler != nil {
		sb.Section(bold("  ScaledObject status:"))
		writeConditions(sb, report.Scaler.Conditions)
		sb.Writef("    Last active:\t%s\n", optionalTime(report.Scaler.LastActive))
	}
	if report.Autoscaler != nil {
		sb.Section(bold("  HPA status:"))
		writeAutoscaler(sb, *report.Autoscaler, "    ")
	}
	for _, e := range report.MeasurementErrors {
		sb.Writef("  %s\t%s\n", red("Measurement error:"), e)
	}
	return r.write(sb.String())
}

func (r *textRenderer) Sample(sample monitor.Sample) error {
	sb := newBuilder()
	if r.samples%clearInterval == 0 {
		sb.Section(clearScreen + header("KEDA Scaling Monitor"))
		sb.Section(cyan("Press Ctrl+C to stop"))
	}
	r.samples++

	sb.Section("")
	sb.Section(header(fmt.Sprintf("===== KEDA Scaling Status at %s =====", sample.Time.Format("15:04:05"))))
	sb.Section(bold(fmt.Sprintf("Stream (%s):", r.stream)))
	sb.Writef("  Messages in queue:\t%s\n", yellow(optional(sample.Stream.Messages)))
	sb.Writef("  Queue size:\t%s\n", optional(sample.Stream.Bytes))
	sb.Writef("  Last sequence:\t%s\n", optional(sample.Stream.LastSeq))

	sb.Section("")
	sb.Section(bold("KEDA ScaledObject:"))
	writeConditions(sb, sample.Scaler.Conditions)

	sb.Section("")
	sb.Section(bold("HPA Status:"))
	writeAutoscaler(sb, sample.Autoscaler, "  ")

	sb.Section("")
	sb.Section(bold("Scaling Status:"))
	sb.Writef("  Current backend pods:\t%s\n", green(sample.Fleet.PodCount))
	sb.Writef("  KEDA active:\t%s\n", conditionColor(sample.KedaActive))
	sb.Writef("  Last active:\t%s\n", optionalTime(sample.Scaler.LastActive))

	sb.Section("")
	sb.Section(bold("History:"))
	sb.Writef("  Pod count:\t%s\n", cyan(joinHistory(sample.PodHistory)))
	if len(sample.MessageHistory) > 0 {
		sb.Writef("  Message count:\t%s\n", cyan(joinHistory(sample.MessageHistory)))
	}
	for _, e := range sample.Errors {
		sb.Writef("  %s\t%s\n", red("Error:"), e)
	}
	return r.write(sb.String())
}

func (r *textRenderer) PurgeResult(result purge.Result) error {
	sb := newBuilder()
	sb.Section(bold("Stream info before purge:"))
	writeStreamStats(sb, result.Before)
	if result.Success {
		sb.Section(green(fmt.Sprintf("Successfully purged all messages from stream %s", result.Stream)))
		sb.Section("")
		sb.Section(bold("Stream info after purge:"))
		writeStreamStats(sb, result.After)
	} else {
		sb.Section(red(fmt.Sprintf("Error purging stream %s: %s", result.Stream, result.Error)))
	}
	return r.write(sb.String())
}

func newBuilder() *util.TabbedStringBuilder {
	return util.NewTabbedStringBuilder(1, 1, 1, ' ', 0)
}

func writeStreamStats(sb *util.TabbedStringBuilder, stats *broker.StreamStats) {
	if stats == nil {
		sb.Section(red("  Could not get stream info"))
		return
	}
	sb.Writef("  Messages:\t%s\n", optional(stats.Messages))
	sb.Writef("  Bytes:\t%s\n", optional(stats.Bytes))
	sb.Writef("  First sequence:\t%s\n", optional(stats.FirstSeq))
	sb.Writef("  Last sequence:\t%s\n", optional(stats.LastSeq))
	sb.Writef("  Deleted messages:\t%s\n", optional(stats.Deleted))
}

func writeConditions(sb *util.TabbedStringBuilder, conditions []fleet.Condition) {
	if len(conditions) == 0 {
		sb.Writef("  Conditions:\t%s\n", notAvailable)
		return
	}
	for _, c := range conditions {
		sb.Writef("  %s:\t%s\n", c.Type, conditionColor(c.Status))
		if c.Message != "" {
			sb.Writef("    %s\n", cyan(c.Message))
		}
	}
}

func writeAutoscaler(sb *util.TabbedStringBuilder, status fleet.AutoscalerStatus, indent string) {
	sb.Writef("%sCurrent replicas:\t%s\n", indent, green(optional(status.CurrentReplicas)))
	sb.Writef("%sDesired replicas:\t%s\n", indent, yellow(optional(status.DesiredReplicas)))
	for _, m := range status.Metrics {
		sb.Writef("%s%s:\t%s\n", indent, m.Name, yellow(m.Value))
	}
}

func conditionColor(status fleet.ConditionStatus) string {
	if status == fleet.ConditionTrue {
		return green(string(status))
	}
	return red(string(status))
}

func optional(v *uint64) string {
	if v == nil {
		return notAvailable
	}
	return strconv.FormatUint(*v, 10)
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return notAvailable
	}
	return t.Format(time.RFC3339)
}

func joinHistory(values []uint64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatUint(v, 10)
	}
	return strings.Join(parts, " -> ")
}
