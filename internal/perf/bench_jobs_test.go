package perf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/cinemaclub/cinemaclub/internal/catalog"
	jobmetrics "github.com/cinemaclub/cinemaclub/internal/jobs"
	"github.com/cinemaclub/cinemaclub/jobs"
)

type scriptedImporter struct {
	delay time.Duration
	calls int
	failN int
}

func (s *scriptedImporter) Run(ctx context.Context) (catalog.Result, error) {
	s.calls++
	time.Sleep(s.delay)
	if s.calls <= s.failN {
		return catalog.Result{}, errors.New("upstream timeout")
	}
	return catalog.Result{MoviesCreated: 3, MoviesUpdated: 1, MembersCreated: 2, Skipped: 1}, nil
}

func TestCatalogImportThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	importer := &scriptedImporter{delay: 5 * time.Millisecond, failN: 2}
	job := jobs.NewCatalogImportJob(importer, nil, metrics)

	task, err := jobs.NewCatalogImportTask(jobs.CatalogImportPayload{RequestedBy: "perf"})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	for i := 0; i < 30; i++ {
		err := job.Handle(context.Background(), asynq.NewTask(task.Type(), task.Payload()))
		if i < importer.failN && err == nil {
			t.Fatal("expected error to propagate")
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "cinemaclub_jobs_total", map[string]string{"job": jobs.TaskCatalogImport, "status": "success"})
	failure := metricValue(t, families, "cinemaclub_jobs_total", map[string]string{"job": jobs.TaskCatalogImport, "status": "failure"})
	if success+failure != 30 {
		t.Fatalf("expected 30 runs, got %v", success+failure)
	}
	ratio := success / (success + failure)
	if ratio < 0.9 {
		t.Fatalf("catalog import success ratio too low: %f", ratio)
	}

	created := metricValue(t, families, "cinemaclub_catalog_records_total", map[string]string{"kind": "movie", "outcome": "created"})
	if created != 28*3 {
		t.Fatalf("expected %d created movies, got %v", 28*3, created)
	}

	mean := histogramMean(t, families, "cinemaclub_job_duration_seconds", map[string]string{"job": jobs.TaskCatalogImport})
	if mean > 0.5 {
		t.Fatalf("catalog import duration above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
