// Package tufngate re-exports the most used pieces of pkg/tufngate so
// callers can import the module root.
package tufngate

import (
	"github.com/tufnapp/tufngate/pkg/tufngate"
)

type (
	Gate      = tufngate.Gate
	Config    = tufngate.Config
	Option    = tufngate.Option
	Decision  = tufngate.Decision
	Submitter = tufngate.Submitter
	Outcome   = tufngate.Outcome
	Command   = tufngate.Command
)

var (
	New          = tufngate.New
	NewSubmitter = tufngate.NewSubmitter
	NewConfig    = tufngate.NewConfig
)
