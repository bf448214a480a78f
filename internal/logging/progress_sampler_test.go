package logging_test

import (
	"testing"

	"vidpipe/internal/logging"
)

func TestProgressSamplerEmitsOnBucketBoundaries(t *testing.T) {
	sampler := logging.NewProgressSampler(5)

	if !sampler.ShouldReport(0, "transcoding") {
		t.Fatal("expected first event to be reported")
	}
	if sampler.ShouldReport(2, "transcoding") {
		t.Fatal("expected 2%% to be suppressed inside the first bucket")
	}
	if sampler.ShouldReport(4.9, "transcoding") {
		t.Fatal("expected 4.9%% to be suppressed inside the first bucket")
	}
	if !sampler.ShouldReport(5, "transcoding") {
		t.Fatal("expected 5%% to cross the bucket boundary")
	}
	if !sampler.ShouldReport(23, "transcoding") {
		t.Fatal("expected a skip over multiple buckets to report")
	}
	if sampler.ShouldReport(24, "transcoding") {
		t.Fatal("expected 24%% to be suppressed")
	}
	if !sampler.ShouldReport(100, "transcoding") {
		t.Fatal("expected completion to be reported")
	}
}

func TestProgressSamplerEmitsOnStageChange(t *testing.T) {
	sampler := logging.NewProgressSampler(5)

	if !sampler.ShouldReport(50, "merging") {
		t.Fatal("expected initial stage report")
	}
	if !sampler.ShouldReport(50, "transcoding") {
		t.Fatal("expected stage change to report even with unchanged percent")
	}
	if sampler.ShouldReport(-1, "transcoding") {
		t.Fatal("expected unknown percent in same stage to be suppressed")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	sampler := logging.NewProgressSampler(5)
	sampler.ShouldReport(80, "uploading")
	sampler.Reset()
	if !sampler.ShouldReport(0, "uploading") {
		t.Fatal("expected report after reset")
	}
}

func TestNilSamplerAlwaysReports(t *testing.T) {
	var sampler *logging.ProgressSampler
	if !sampler.ShouldReport(1, "x") {
		t.Fatal("nil sampler should always report")
	}
}
