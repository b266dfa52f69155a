// Package notify implements the four fire-and-forget notification kinds
// spec.md §4.7 names, backed by AWS SNS the way the teacher's
// NotificationManager analogue would be ported: aws-sdk-go's SNS client,
// already part of the module's dependency graph via backends/s3's shared
// session, and no new module needed.
package notify

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Channels names the three SNS topic ARNs read from the environment by
// the outer CLI collaborator, per spec.md §6.
type Channels struct {
	DownloadComplete string
	FinalAggregate   string
	Administrative   string
}

// Notifier publishes the four notification kinds spec.md §4.7 defines.
// Every Publish call is fire-and-forget: a failure is logged and never
// propagated to the caller, so a notification outage cannot fail a
// download.
type Notifier struct {
	client   *sns.SNS
	channels Channels
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// New constructs a Notifier. limiter bounds the rate of SNS Publish calls
// so a catalogue-wide failure (every dataset corrupted, say) cannot flood
// the administrative topic; golang-migrate aside, golang.org/x/time/rate
// is already a direct dependency of this module for exactly this purpose.
func New(sess *session.Session, channels Channels, limiter *rate.Limiter, logger *zap.Logger) *Notifier {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(5), 10)
	}
	return &Notifier{
		client:   sns.New(sess),
		channels: channels,
		limiter:  limiter,
		logger:   logger,
	}
}

// DiskFull emits the disk-full notification to the administrative
// channel, per spec.md §4.7.
func (n *Notifier) DiskFull(ctx context.Context, sourceURI string, fileSizeMB, freeMB float64) {
	n.publish(ctx, n.channels.Administrative, "disk-full", map[string]any{
		"sourceUri":  sourceURI,
		"fileSizeMB": fileSizeMB,
		"freeMB":     freeMB,
	})
}

// CorruptedFile emits the corrupted-file notification to the
// administrative channel, per spec.md §4.7.
func (n *Notifier) CorruptedFile(ctx context.Context, definitionID, datasetID, errorMessage string) {
	n.publish(ctx, n.channels.Administrative, "corrupted-file", map[string]any{
		"definitionId": definitionID,
		"datasetId":    datasetID,
		"errorMessage": errorMessage,
	})
}

// PerDefinitionSummary is the payload shape shared by DownloadSummary and
// FinalAggregate.
type PerDefinitionSummary struct {
	DefinitionID string `json:"definitionId"`
	Successes    int    `json:"successes"`
	Warnings     int    `json:"warnings"`
	Errors       int    `json:"errors"`
}

// DownloadSummary emits the per-definition download notification to the
// download-complete operational channel, per spec.md §4.7. Callers are
// expected to only call this when the summary is non-empty, per the
// decision in spec.md §4.2.
func (n *Notifier) DownloadSummary(ctx context.Context, summary PerDefinitionSummary) {
	n.publish(ctx, n.channels.DownloadComplete, "per-definition-download", summary)
}

// FinalAggregate emits the final aggregate notification to the
// final-aggregate operational channel once per process, per spec.md §4.7.
func (n *Notifier) FinalAggregate(ctx context.Context, summaries []PerDefinitionSummary) {
	n.publish(ctx, n.channels.FinalAggregate, "final-aggregate", map[string]any{
		"definitions": summaries,
	})
}

func (n *Notifier) publish(ctx context.Context, topicARN, kind string, payload any) {
	if topicARN == "" {
		n.logger.Warn("notify: no topic ARN configured, dropping notification", zap.String("kind", kind))
		return
	}

	if err := n.limiter.Wait(ctx); err != nil {
		n.logger.Warn("notify: rate limiter wait failed, dropping notification",
			zap.String("kind", kind), zap.Error(err))
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("notify: failed to encode payload", zap.String("kind", kind), zap.Error(err))
		return
	}

	_, err = n.client.PublishWithContext(ctx, &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]*sns.MessageAttributeValue{
			"kind": {DataType: aws.String("String"), StringValue: aws.String(kind)},
		},
	})
	if err != nil {
		n.logger.Warn("notify: publish failed, continuing",
			zap.String("kind", kind), zap.String("topicArn", topicARN), zap.Error(err))
		return
	}

	n.logger.Debug("notify: published", zap.String("kind", kind), zap.String("topicArn", topicARN))
}
