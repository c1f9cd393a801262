package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// PutMetricDataAPI is the interface for the CloudWatch PutMetricData operation.
// Used for testing with mock implementations.
type PutMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchCollector publishes each outcome as CloudWatch metric data in a
// single namespace. Every datum carries the configured dimensions.
type CloudWatchCollector struct {
	cw         PutMetricDataAPI
	namespace  string
	dimensions []types.Dimension
	timeout    time.Duration
}

// NewCloudWatch loads the default AWS configuration for region and returns
// a collector publishing into namespace.
func NewCloudWatch(ctx context.Context, region, namespace string, dimensions map[string]string) (*CloudWatchCollector, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewCloudWatchCollector(cloudwatch.NewFromConfig(cfg), namespace, dimensions), nil
}

// NewCloudWatchCollector creates a collector with a custom client, used for testing.
func NewCloudWatchCollector(cw PutMetricDataAPI, namespace string, dimensions map[string]string) *CloudWatchCollector {
	dims := make([]types.Dimension, 0, len(dimensions))
	for k, v := range dimensions {
		dims = append(dims, types.Dimension{Name: &k, Value: &v})
	}
	return &CloudWatchCollector{
		cw:         cw,
		namespace:  namespace,
		dimensions: dims,
		timeout:    10 * time.Second, // per-call timeout
	}
}

// AttachmentSaved publishes AttachmentSaved and AttachmentBytes.
func (c *CloudWatchCollector) AttachmentSaved(bytes int64) {
	size := float64(bytes)
	c.put("AttachmentSaved",
		types.MetricDatum{
			MetricName: strPtr("AttachmentSaved"),
			Unit:       types.StandardUnitCount,
			Value:      floatPtr(1),
		},
		types.MetricDatum{
			MetricName: strPtr("AttachmentBytes"),
			Unit:       types.StandardUnitBytes,
			Value:      &size,
		},
	)
}

// AttachmentRejected publishes AttachmentRejected.
func (c *CloudWatchCollector) AttachmentRejected() {
	c.put("AttachmentRejected", types.MetricDatum{
		MetricName: strPtr("AttachmentRejected"),
		Unit:       types.StandardUnitCount,
		Value:      floatPtr(1),
	})
}

// ProcessError publishes ProcessError.
func (c *CloudWatchCollector) ProcessError() {
	c.put("ProcessError", types.MetricDatum{
		MetricName: strPtr("ProcessError"),
		Unit:       types.StandardUnitCount,
		Value:      floatPtr(1),
	})
}

// put sends data with a per-call timeout and logs failures.
func (c *CloudWatchCollector) put(label string, data ...types.MetricDatum) {
	now := time.Now()
	for i := range data {
		data[i].Timestamp = &now
		data[i].Dimensions = c.dimensions
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	_, err := c.cw.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &c.namespace,
		MetricData: data,
	})
	if err != nil {
		slog.Error("failed to send CloudWatch metric", "metric", label, "error", err)
	}
}

func strPtr(s string) *string      { return &s }
func floatPtr(f float64) *float64 { return &f }

var _ Collector = (*CloudWatchCollector)(nil)
