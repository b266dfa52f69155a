package publish

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/aims-ereefs/thredds-mirror/definition"
)

// Dispatcher resolves a Definition's Output.Type to the Publisher that
// implements it, per DESIGN NOTES §9 ("model the sink as a capability
// ... do not scatter if scheme==file throughout the pipeline").
type Dispatcher struct {
	localfs *LocalFSPublisher
	s3      *S3Publisher
}

// NewDispatcher wires both backing Publishers. awsSession may be nil if
// the process has no S3-backed definitions configured; attempting to
// dispatch a SinkS3 definition without one is a configuration fault.
func NewDispatcher(awsSession *session.Session) *Dispatcher {
	d := &Dispatcher{localfs: NewLocalFSPublisher()}
	if awsSession != nil {
		d.s3 = NewS3Publisher(awsSession)
	}
	return d
}

// For returns the Publisher backing sinkType.
func (d *Dispatcher) For(sinkType definition.SinkType) (Publisher, error) {
	switch sinkType {
	case definition.SinkFile:
		return d.localfs, nil
	case definition.SinkS3:
		if d.s3 == nil {
			return nil, fmt.Errorf("publish: definition uses S3 sink but no AWS session is configured")
		}
		return d.s3, nil
	default:
		return nil, fmt.Errorf("publish: unknown sink type %q", sinkType)
	}
}
