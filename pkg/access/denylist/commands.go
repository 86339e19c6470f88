// Package denylist assembles the signed command envelopes that push
// revocations to locks, decides when a command is worth sending, and prunes
// expired entries from the store.
package denylist

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/blulok/blulok-cloud/pkg/access/signing"
)

// Command type claims on denylist envelopes.
const (
	CmdTypeAdd    = "DENYLIST_ADD"
	CmdTypeRemove = "DENYLIST_REMOVE"
)

// commandTTL bounds how long a command envelope remains presentable to a
// lock. Locks additionally enforce signature and ts ordering.
const commandTTL = 5 * time.Minute

// Entry is one denied subject inside a DENYLIST_ADD envelope. Exp is the
// entry's removal deadline in unix seconds; locks drop the entry themselves
// once it passes.
type Entry struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"`
}

// CommandBuilder signs denylist command envelopes with the operator key.
type CommandBuilder struct {
	signer *signing.Service
	clock  clockwork.Clock
}

// NewCommandBuilder creates a command builder.
func NewCommandBuilder(signer *signing.Service, clock clockwork.Clock) *CommandBuilder {
	return &CommandBuilder{
		signer: signer,
		clock:  clock,
	}
}

// BuildAdd assembles and signs a DENYLIST_ADD envelope targeting the given
// lock devices.
func (b *CommandBuilder) BuildAdd(targets []string, entries []Entry) (string, error) {
	if len(targets) == 0 {
		return "", fmt.Errorf("denylist add requires at least one target")
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("denylist add requires at least one entry")
	}
	return b.signer.SignCommand(map[string]any{
		"cmd_type": CmdTypeAdd,
		"targets":  targets,
		"entries":  entries,
	}, commandTTL, b.clock.Now())
}

// BuildRemove assembles and signs a DENYLIST_REMOVE envelope clearing the
// given subjects from the given lock devices.
func (b *CommandBuilder) BuildRemove(targets, subjects []string) (string, error) {
	if len(targets) == 0 {
		return "", fmt.Errorf("denylist remove requires at least one target")
	}
	if len(subjects) == 0 {
		return "", fmt.Errorf("denylist remove requires at least one subject")
	}
	return b.signer.SignCommand(map[string]any{
		"cmd_type": CmdTypeRemove,
		"targets":  targets,
		"subjects": subjects,
	}, commandTTL, b.clock.Now())
}
