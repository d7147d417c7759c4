package engine

import (
	"time"

	"github.com/DrSkyle/tagguard/pkg/engine/aws"
)

// Identity of the demo account used by --mock runs. The alias contains
// "sandbox", so the default classifier treats it as Internal.
const (
	MockAccountID    = "123456789012"
	MockAccountAlias = "tagguard-sandbox"
)

func (e *Engine) wireMock() error {
	e.Logger.Info("Starting Mock Mode")
	p := aws.NewMockProvider(MockAccountID, MockAccountAlias)
	p.Latency = 20 * time.Millisecond
	aws.SeedDemo(p)

	e.targets = p.Targets(e.config.Kinds)
	if e.identity == nil {
		e.identity = p
	}
	return e.wireArchive(nil)
}
