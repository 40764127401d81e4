// Package mining implements the Mining Trigger: the transaction proxy,
// confirmation scheduler, block requester, idle/confirmation workers, and
// the orchestrator that wires them together. See spec.md §3-§4 for the
// contracts implemented here.
package mining

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/mitchellh/mapstructure"

	"github.com/kadena-community/pact-toolbox-sub005/pacterrors"
)

// ChainCount is the number of parallel chains in a Chainweb network.
const ChainCount = 20

// idleCadenceDamping is the unexplained 0.616 factor from spec.md §4.5 /
// §9: it dampens the idle worker's period so it doesn't synchronize with
// the confirmation worker's cadence. Retained verbatim per the spec's
// explicit instruction not to "fix" it — see spec.md's Open Questions.
const idleCadenceDamping = 0.616

// ChainId is an integer in [0, ChainCount). It marshals as its decimal
// string form so it can be used as a JSON object key in mining-client
// request bodies.
type ChainId int

// Valid reports whether c is in [0, ChainCount).
func (c ChainId) Valid() bool { return c >= 0 && c < ChainCount }

// String returns the decimal string form used in wire formats.
func (c ChainId) String() string { return strconv.Itoa(int(c)) }

// MarshalText implements encoding.TextMarshaler, so a JSON encoder renders
// a ChainId, whether a value or a map key, as its quoted decimal string
// form (e.g. "3").
func (c ChainId) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// ParseChainID parses s as a ChainId, rejecting non-integers and
// out-of-range values. Used by the proxy handler's :chainId path segment.
func ParseChainID(s string) (ChainId, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("chain id %q is not an integer", s)
	}
	c := ChainId(n)
	if !c.Valid() {
		return 0, fmt.Errorf("chain id %d out of range [0,%d)", n, ChainCount)
	}
	return c, nil
}

// ConfirmationDemand is produced by the scheduler and consumed once by the
// confirmation worker.
type ConfirmationDemand struct {
	Chains        []ChainId
	Confirmations int
}

// Empty reports whether the demand carries no chains (the sentinel
// returned by WaitNextDemands when nothing was pending at deadline).
func (d ConfirmationDemand) Empty() bool { return len(d.Chains) == 0 }

// MiningTriggerConfig is the validated configuration record MT is
// constructed from. All recognized options are enumerated here per
// spec.md §3; mapstructure tags let DecodeConfig reject unrecognized fields
// at the boundary instead of silently ignoring them.
type MiningTriggerConfig struct {
	MiningClientURL               string  `mapstructure:"miningClientUrl"`
	ChainwebServiceEndpoint       string  `mapstructure:"chainwebServiceEndpoint"`
	IdleTriggerPeriodSec          float64 `mapstructure:"idleTriggerPeriodSec"`
	ConfirmationTriggerPeriodSec  float64 `mapstructure:"confirmationTriggerPeriodSec"`
	TransactionBatchPeriodSec     float64 `mapstructure:"transactionBatchPeriodSec"`
	MiningCooldownSec             float64 `mapstructure:"miningCooldownSec"`
	DefaultConfirmationCount      int     `mapstructure:"defaultConfirmationCount"`
	DisableIdleWorker             bool    `mapstructure:"disableIdleWorker"`
	DisableConfirmationWorker     bool    `mapstructure:"disableConfirmationWorker"`
}

// DecodeConfig strictly decodes raw (typically a map[string]any parsed from
// an upstream config loader, out of this core's scope) into a
// MiningTriggerConfig, rejecting unrecognized keys via mapstructure's
// ErrorUnused, matching spec.md §9's "Unknown fields should be rejected at
// the boundary."
func DecodeConfig(raw map[string]any) (MiningTriggerConfig, error) {
	var cfg MiningTriggerConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &cfg,
	})
	if err != nil {
		return cfg, pacterrors.Wrap(err, "building config decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, pacterrors.Wrapf(pacterrors.ErrConfigInvalid, "%v", err)
	}
	return cfg, nil
}

// Validate performs the static checks spec.md §4.7's start() runs before
// transitioning to Running. idleTriggerPeriodSec <= 0 is the one check
// spec.md calls out explicitly; the others are implied by the "> 0" / ">= 0"
// bounds in spec.md §3's field descriptions.
func (c MiningTriggerConfig) Validate() error {
	if c.IdleTriggerPeriodSec <= 0 {
		return pacterrors.Wrapf(pacterrors.ErrConfigInvalid, "idleTriggerPeriodSec must be > 0, got %v", c.IdleTriggerPeriodSec)
	}
	if c.ConfirmationTriggerPeriodSec <= 0 {
		return pacterrors.Wrapf(pacterrors.ErrConfigInvalid, "confirmationTriggerPeriodSec must be > 0, got %v", c.ConfirmationTriggerPeriodSec)
	}
	if c.TransactionBatchPeriodSec < 0 {
		return pacterrors.Wrapf(pacterrors.ErrConfigInvalid, "transactionBatchPeriodSec must be >= 0, got %v", c.TransactionBatchPeriodSec)
	}
	if c.MiningCooldownSec < 0 {
		return pacterrors.Wrapf(pacterrors.ErrConfigInvalid, "miningCooldownSec must be >= 0, got %v", c.MiningCooldownSec)
	}
	if c.DefaultConfirmationCount < 0 {
		return pacterrors.Wrapf(pacterrors.ErrConfigInvalid, "defaultConfirmationCount must be >= 0, got %v", c.DefaultConfirmationCount)
	}
	if _, err := url.Parse(c.MiningClientURL); err != nil || c.MiningClientURL == "" {
		return pacterrors.Wrapf(pacterrors.ErrConfigInvalid, "miningClientUrl invalid: %v", err)
	}
	if _, err := url.Parse(c.ChainwebServiceEndpoint); err != nil || c.ChainwebServiceEndpoint == "" {
		return pacterrors.Wrapf(pacterrors.ErrConfigInvalid, "chainwebServiceEndpoint invalid: %v", err)
	}
	return nil
}

// IdleWorkerPeriod returns the damped idle-worker cadence, spec.md §4.5:
// idleTriggerPeriodSec * 0.616 seconds.
func (c MiningTriggerConfig) IdleWorkerPeriod() float64 {
	return c.IdleTriggerPeriodSec * idleCadenceDamping
}
