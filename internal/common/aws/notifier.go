// internal/common/aws/notifier.go
package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
)

// Notifier delivers a short operational notice, such as a finished batch run.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Options selects which channels NewNotifier wires.
type Options struct {
	Region    string
	SNSTopic  string
	SESFrom   string
	SESTo     []string
	EnableSNS bool
	EnableSES bool
}

// NewNotifier builds a notifier over the enabled channels. With no channel
// enabled it returns a no-op notifier and makes no AWS calls.
func NewNotifier(ctx context.Context, opts Options) (Notifier, error) {
	if !opts.EnableSNS && !opts.EnableSES {
		return NopNotifier{}, nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var multi MultiNotifier
	if opts.EnableSNS {
		multi = append(multi, NewSNSNotifier(newSNSAPI(awsCfg), opts.SNSTopic))
	}
	if opts.EnableSES {
		multi = append(multi, NewSESNotifier(newSESAPI(awsCfg), opts.SESFrom, opts.SESTo))
	}
	return multi, nil
}

// MultiNotifier fans a notice out to every channel and joins the failures.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, subject, body string) error {
	var failures []string
	for _, n := range m {
		if err := n.Notify(ctx, subject, body); err != nil {
			failures = append(failures, err.Error())
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("notify: %s", strings.Join(failures, "; "))
	}
	return nil
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string) error { return nil }
