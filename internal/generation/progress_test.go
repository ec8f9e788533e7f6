package generation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogReporter_ClampsAndNeverRegresses(t *testing.T) {
	ctx := context.Background()
	r := NewLogReporter()

	r.Report(ctx, "job-a", -0.2, "预热")
	assert.Equal(t, 0.0, r.seen["job-a"])

	r.Report(ctx, "job-a", 0.4, "")
	assert.Equal(t, 0.4, r.seen["job-a"])

	// 乱序到达的旧进度不回退
	r.Report(ctx, "job-a", 0.1, "")
	assert.Equal(t, 0.4, r.seen["job-a"])

	r.Report(ctx, "job-a", 1.5, "")
	assert.Equal(t, 1.0, r.seen["job-a"])
}

func TestLogReporter_TracksJobsIndependently(t *testing.T) {
	ctx := context.Background()
	r := NewLogReporter()

	r.Report(ctx, "job-a", 0.8, "")
	r.Report(ctx, "job-b", 0.3, "")

	assert.Equal(t, 0.8, r.seen["job-a"])
	assert.Equal(t, 0.3, r.seen["job-b"])
}
